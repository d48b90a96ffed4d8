package migration

import (
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBRunMigrations {
			if err := applySchema(conn, log); err != nil {
				return err
			}
		}

		if cfg.SeedCompanyID != 0 && len(cfg.SeedAccountMappings) > 0 {
			n, err := seed.EnsureAccountMappings(conn, cfg.SeedCompanyID, cfg.SeedAccountMappings)
			if err != nil {
				return err
			}
			log.Info("account mappings seeded", zap.Int64("company_id", cfg.SeedCompanyID), zap.Int("count", n))
		}
		return nil
	}),
)

// applySchema runs the versioned migrations on postgres. Other dialects are only
// used for local development and get the schema from the models.
func applySchema(conn *gorm.DB, log *zap.Logger) error {
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(
			&domain.AccountingIntegration{},
			&domain.ChartOfAccountsMapping{},
			&domain.AccountingSyncLog{},
		)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	version, err := RunMigrations(sqlDB)
	if err != nil {
		return err
	}
	log.Info("accounting schema migrated", zap.Uint("version", version))
	return nil
}
