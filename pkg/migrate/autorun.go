package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/matcycle-backend/pkg/config"
	"github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. Sqlite connections are migrated from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.DB.Driver == db.DriverSQLite {
		ctx = logg.WithField(ctx, "driver", db.DriverSQLite)
		logg.Info(ctx, "running sqlite auto-migrate (dev auto-run)")
		if err := AutoMigrateSQLite(client.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite auto-migrate completed")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, "")
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": m.Version, "duration_ms": m.Duration.Milliseconds()}), "applied migration "+m.Name)
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "embedded migrations up to date")
	return nil
}
