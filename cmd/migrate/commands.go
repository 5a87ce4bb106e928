package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/matcycle-backend/pkg/migrate"
)

type schemaRunner interface {
	Up(ctx context.Context) ([]migrate.Applied, error)
	Down(ctx context.Context) (*migrate.Applied, error)
	To(ctx context.Context, target int64) ([]migrate.Applied, error)
	Version(ctx context.Context) (int64, error)
	Status(ctx context.Context) ([]migrate.Status, error)
}

// opener returns a runner for dir and a release func.
type opener func(ctx context.Context, dir string) (schemaRunner, func(), error)

type cli struct {
	open opener
	out  io.Writer
	now  func() time.Time
	dir  string
}

func newRootCmd(open opener, out io.Writer, now func() time.Time) *cobra.Command {
	c := &cli{open: open, out: out, now: now}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the matcycle postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.dir, "dir", "", "migrations directory (empty uses the migrations built into the binary)")

	root.AddCommand(
		c.withRunner("up", "Apply all pending migrations", cobra.NoArgs, func(ctx context.Context, r schemaRunner, _ []string) error {
			applied, err := r.Up(ctx)
			c.printApplied(applied)
			return err
		}),
		c.withRunner("down", "Roll back the latest migration", cobra.NoArgs, func(ctx context.Context, r schemaRunner, _ []string) error {
			applied, err := r.Down(ctx)
			if applied != nil {
				c.printApplied([]migrate.Applied{*applied})
			}
			return err
		}),
		c.withRunner("to <version>", "Migrate up or down to a version", cobra.ExactArgs(1), func(ctx context.Context, r schemaRunner, args []string) error {
			target, err := migrate.ParseVersion(args[0])
			if err != nil {
				return err
			}
			applied, err := r.To(ctx, target)
			c.printApplied(applied)
			return err
		}),
		c.withRunner("version", "Print the current schema version", cobra.NoArgs, func(ctx context.Context, r schemaRunner, _ []string) error {
			v, err := r.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, v)
			return nil
		}),
		c.withRunner("status", "List migrations and whether they are applied", cobra.NoArgs, func(ctx context.Context, r schemaRunner, _ []string) error {
			rows, err := r.Status(ctx)
			if err != nil {
				return err
			}
			c.printStatus(rows)
			return nil
		}),
		c.createCmd(),
		c.validateCmd(),
	)
	return root
}

func (c *cli) withRunner(use, short string, args cobra.PositionalArgs, fn func(context.Context, schemaRunner, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runner, release, err := c.open(ctx, c.dir)
			if err != nil {
				return err
			}
			if release != nil {
				defer release()
			}
			return fn(ctx, runner, args)
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Write an empty SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.dir
			if dir == "" {
				dir = migrate.DefaultDir
			}
			path, err := migrate.Create(dir, args[0], c.now())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, "created", path)
			return nil
		},
	}
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check migration names and goose annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrate.ValidateDir(c.dir); err != nil {
				return err
			}
			fmt.Fprintln(c.out, color.GreenString("migrations ok"))
			return nil
		},
	}
}

func (c *cli) printApplied(applied []migrate.Applied) {
	if len(applied) == 0 {
		fmt.Fprintln(c.out, "no migrations to run")
		return
	}
	for _, m := range applied {
		fmt.Fprintf(c.out, "%s %d %s (%s)\n", m.Direction, m.Version, m.Name, m.Duration.Round(time.Millisecond))
	}
}

func (c *cli) printStatus(rows []migrate.Status) {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tNAME")
	for _, row := range rows {
		state, at := color.YellowString("pending"), "-"
		if row.Applied {
			state, at = color.GreenString("applied"), row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.Version, state, at, row.Name)
	}
	tw.Flush()
}
