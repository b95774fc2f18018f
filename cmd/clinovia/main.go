package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/clinovia/billing/internal/billing"
	"github.com/clinovia/billing/internal/clock"
	"github.com/clinovia/billing/internal/config"
	"github.com/clinovia/billing/internal/migration"
	"github.com/clinovia/billing/internal/observability"
	"github.com/clinovia/billing/internal/processor"
	"github.com/clinovia/billing/internal/scheduler"
	"github.com/clinovia/billing/internal/seed"
	"github.com/clinovia/billing/internal/server"
	"github.com/clinovia/billing/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node, clk clock.Clock) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.SeedDemoData {
				return seed.EnsureDemoPatient(conn, genID, clk)
			}
			return nil
		}),

		processor.Module,
		billing.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
