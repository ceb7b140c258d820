// Package backend selects the record store implementation for a process.
package backend

import (
	"context"

	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/migration"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"github.com/smallbiznis/chargeplan/internal/recordstore/memstore"
	"github.com/smallbiznis/chargeplan/internal/recordstore/sqlstore"
	"github.com/smallbiznis/chargeplan/internal/recordstore/tablestore"
	"github.com/smallbiznis/chargeplan/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module wires the record store named by kind. Only the SQL backend pulls in
// the database connection and migrations.
func Module(kind string) fx.Option {
	switch kind {
	case config.RecordStoreMemory:
		return fx.Module("recordstore.memory",
			fx.Provide(ProvideMemory),
		)
	case config.RecordStoreDynamo:
		return fx.Module("recordstore.dynamodb",
			fx.Provide(ProvideDynamo),
		)
	default:
		return fx.Module("recordstore.sql",
			db.Module,
			migration.Module,
			fx.Provide(ProvideSQL),
		)
	}
}

func ProvideMemory(log *zap.Logger) recordstore.Store {
	log.Named("recordstore").Warn("using in-memory record store; data is lost on restart")
	return memstore.New()
}

func ProvideSQL(conn *gorm.DB) recordstore.Store {
	return sqlstore.New(conn)
}

func ProvideDynamo(cfg config.Config, log *zap.Logger) (recordstore.Store, error) {
	client, err := tablestore.NewClient(context.Background(), cfg.Dynamo.EndpointOverride)
	if err != nil {
		return nil, err
	}
	log.Named("recordstore").Info("using dynamodb record store",
		zap.String("status_table", cfg.Dynamo.StatusTable),
		zap.String("schedule_table", cfg.Dynamo.ScheduleTable),
	)
	return tablestore.New(client, tablestore.Tables{
		Status:          cfg.Dynamo.StatusTable,
		Schedule:        cfg.Dynamo.ScheduleTable,
		ScheduleIDIndex: cfg.Dynamo.ScheduleIDIndex,
	}), nil
}
