package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/smallbiznis/taxbook/internal/config"
	"github.com/smallbiznis/taxbook/internal/migration"
	"github.com/smallbiznis/taxbook/internal/observability/logger"
	"github.com/smallbiznis/taxbook/internal/server"
	"github.com/smallbiznis/taxbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
