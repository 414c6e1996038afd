package migration

import (
	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/config"
	filingdomain "github.com/dotfilings/dotfilings/internal/filing/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql are development conveniences; gorm's
			// schema sync is good enough there.
			return conn.AutoMigrate(
				&filingdomain.Filing{},
				&filingdomain.Transaction{},
				&carrierdomain.Snapshot{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
