package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/boxlink-backend/pkg/config"
	"github.com/angelmondragon/boxlink-backend/pkg/db"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date on API boot when
// BOXLINK_AUTO_MIGRATE is set. Postgres runs the embedded goose files; SQLite
// gets the mirrored schema.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if strings.EqualFold(cfg.DB.Driver, config.DBDriverSQLite) {
		if err := ApplySQLiteSchema(ctx, client.DB()); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
		logg.Info(ctx, "migrate.autorun.sqlite_schema_applied")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	if err := Run(ctx, sqlDB, Source{Logger: logg}, CommandUp); err != nil {
		return err
	}

	version, err := CurrentVersion(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "migrate.autorun.complete")
	return nil
}
