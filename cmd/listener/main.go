package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/makehaven/paypal-inventory-listener/internal/clock"
	"github.com/makehaven/paypal-inventory-listener/internal/config"
	"github.com/makehaven/paypal-inventory-listener/internal/idempotency"
	"github.com/makehaven/paypal-inventory-listener/internal/inventory"
	"github.com/makehaven/paypal-inventory-listener/internal/ipn"
	"github.com/makehaven/paypal-inventory-listener/internal/migration"
	"github.com/makehaven/paypal-inventory-listener/internal/observability"
	"github.com/makehaven/paypal-inventory-listener/internal/server"
	"github.com/makehaven/paypal-inventory-listener/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		clock.Module,
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		idempotency.Module,
		inventory.Module,
		ipn.Module,
		server.Module,
	)
	app.Run()
}
