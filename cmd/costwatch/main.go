package main

import (
	"os"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/cielolabs/costwatch/internal/cache"
	"github.com/cielolabs/costwatch/internal/clock"
	"github.com/cielolabs/costwatch/internal/config"
	"github.com/cielolabs/costwatch/internal/costquery"
	"github.com/cielolabs/costwatch/internal/discovery"
	"github.com/cielolabs/costwatch/internal/importer"
	"github.com/cielolabs/costwatch/internal/logger"
	"github.com/cielolabs/costwatch/internal/migration"
	"github.com/cielolabs/costwatch/internal/observability/metrics"
	"github.com/cielolabs/costwatch/internal/reference"
	"github.com/cielolabs/costwatch/internal/resolver"
	"github.com/cielolabs/costwatch/internal/server"
	"github.com/cielolabs/costwatch/internal/snapshot"
	"github.com/cielolabs/costwatch/internal/source"
	"github.com/cielolabs/costwatch/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		cache.Module,
		migration.Module,

		source.Module,
		reference.Module,
		snapshot.Module,
		importer.Module,
		discovery.Module,
		resolver.Module,
		costquery.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(nodeID())
	if err != nil {
		panic(err)
	}
	return node
}

func nodeID() int64 {
	raw := os.Getenv("SNOWFLAKE_NODE_ID")
	if raw == "" {
		return 1
	}
	var id int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 1
		}
		id = id*10 + int64(c-'0')
	}
	if id > 1023 {
		return 1
	}
	return id
}
