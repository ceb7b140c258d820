package migration

import (
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")
	if db.DialectName(cfg) != db.DialectPostgres {
		log.Info("auto-migrating record store", zap.String("dialect", db.DialectName(cfg)))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("record store migrations applied")
	return nil
}
