package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/matcycle-backend/internal/assets"
	"github.com/angelmondragon/matcycle-backend/internal/engine"
	"github.com/angelmondragon/matcycle-backend/internal/pickups"
	"github.com/angelmondragon/matcycle-backend/internal/reports"
	"github.com/angelmondragon/matcycle-backend/pkg/config"
	"github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/migrate"
	"github.com/angelmondragon/matcycle-backend/pkg/outbox"
)

const actorEnv = "MATCYCLE_ACTOR_ID"

// deadLetterLister reads the publisher's dead letters.
type deadLetterLister interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
}

// app is what a command needs once the environment is up.
type app struct {
	Assets      assets.Ledger
	Pickups     pickups.Orchestrator
	Reports     reports.Service
	DeadLetters deadLetterLister
}

// loader builds the app and returns a release func.
type loader func(ctx context.Context) (*app, func(), error)

type cli struct {
	load    loader
	out     io.Writer
	actor   string
	asJSON  bool
	noColor bool
}

func newRootCmd(load loader, out io.Writer) *cobra.Command {
	c := &cli{load: load, out: out}

	root := &cobra.Command{
		Use:           "matctl",
		Short:         "Operate rental mat assets, pickup batches and reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.noColor {
				color.NoColor = true
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.actor, "actor", os.Getenv(actorEnv), "acting user id (defaults to $"+actorEnv+")")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(c.assetsCmd())
	root.AddCommand(c.pickupsCmd())
	root.AddCommand(c.reportsCmd())
	root.AddCommand(c.outboxCmd())
	return root
}

func (c *cli) actorID() (uuid.UUID, error) {
	raw := strings.TrimSpace(c.actor)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--actor or $%s is required", actorEnv)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid actor id %q: %w", raw, err)
	}
	return id, nil
}

// run loads the app, executes fn and releases resources.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, release, err := c.load(ctx)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, a)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUUIDArg(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return id, nil
}

// loadFromEnv bootstraps config, logger and database the same way the API does.
func loadFromEnv(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "matctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      logger.FormatConsole,
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	release := func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		release()
		return nil, nil, err
	}

	eng, err := engine.New(engine.Params{Config: cfg, Logger: logg, DB: dbClient})
	if err != nil {
		release()
		return nil, nil, err
	}
	return &app{
		Assets:      eng.Assets,
		Pickups:     eng.Pickups,
		Reports:     eng.Reports,
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
	}, release, nil
}
