package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/clock"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/migration"
	"github.com/smallbiznis/caskr/internal/observability"
	"github.com/smallbiznis/caskr/internal/server"
	"github.com/smallbiznis/caskr/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the accounting services behind it
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
