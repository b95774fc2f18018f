// Package db bootstraps the gorm connection for the service.
package db

import (
	"context"

	"github.com/clinovia/billing/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database. Production uses Postgres; an empty
// BILLING_DATABASE_URL falls back to a local sqlite file for development.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector := dialectorFor(cfg)
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	log.Info("database connected", zap.String("dialect", conn.Dialector.Name()))
	return conn, nil
}

func dialectorFor(cfg config.Config) gorm.Dialector {
	if cfg.DatabaseURL == "" {
		return sqlite.Open("billing.db")
	}
	return postgres.Open(cfg.DatabaseURL)
}

// Module provides the database handle and closes it on shutdown.
var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}),
)
