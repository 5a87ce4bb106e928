package migrate

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
)

// activeAssetIndexSQL mirrors ux_cycles_active_asset from the postgres migrations.
const activeAssetIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS ux_cycles_active_asset ON cycles (asset_id) WHERE status <> 'completed'`

// openPickupIndexSQL mirrors ux_pickup_items_open_cycle.
const openPickupIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS ux_pickup_items_open_cycle ON pickup_items (cycle_id) WHERE is_open`

// AutoMigrateSQLite builds the schema on a sqlite connection. Goose migrations
// target postgres; sqlite is used for local runs and tests.
func AutoMigrateSQLite(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if name := conn.Dialector.Name(); name != "sqlite" {
		return fmt.Errorf("auto migrate requires sqlite, got %q", name)
	}

	if err := conn.AutoMigrate(
		&models.Asset{},
		&models.Cycle{},
		&models.PickupBatch{},
		&models.PickupItem{},
		&models.HistoryEvent{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := conn.Exec(activeAssetIndexSQL).Error; err != nil {
		return fmt.Errorf("create active asset index: %w", err)
	}
	if err := conn.Exec(openPickupIndexSQL).Error; err != nil {
		return fmt.Errorf("create open pickup index: %w", err)
	}
	return nil
}
