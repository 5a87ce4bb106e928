package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/matcycle-backend/pkg/config"
	"github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openFromEnv, os.Stdout, time.Now).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openFromEnv connects with the service configuration and returns a goose-backed runner.
func openFromEnv(ctx context.Context, dir string) (schemaRunner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": dir})

	if cfg.DB.Driver == db.DriverSQLite {
		return nil, nil, fmt.Errorf("goose migrations target postgres; sqlite is migrated from models on startup")
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	release := func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, dir)
	if err != nil {
		release()
		return nil, nil, err
	}
	logg.Info(ctx, "migrate ready")
	return runner, release, nil
}
