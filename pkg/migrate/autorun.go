package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/buyback-backend/pkg/config"
	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table the buyback service owns.
func Models() []any {
	return []any{
		&models.StockBalance{},
		&models.StockLot{},
		&models.StockMutation{},
		&models.PriceSnapshot{},
	}
}

// AutoMigrateModels creates the schema from the gorm models. Used for sqlite,
// where the postgres SQL files do not apply.
func AutoMigrateModels(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	return nil
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	conn := client.DB()
	meta := map[string]any{"env": cfg.App.Env, "dialect": conn.Dialector.Name()}

	if cfg.DB.UseSQLite {
		ctx = logg.WithFields(ctx, meta)
		logg.Info(ctx, "auto-migrating sqlite schema (dev auto-run)")
		return AutoMigrateModels(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta["dir"] = DefaultDir
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
