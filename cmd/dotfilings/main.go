package main

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/dotfilings/dotfilings/internal/carrier"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/dotfilings/dotfilings/internal/fees"
	"github.com/dotfilings/dotfilings/internal/filing"
	"github.com/dotfilings/dotfilings/internal/logger"
	"github.com/dotfilings/dotfilings/internal/migration"
	"github.com/dotfilings/dotfilings/internal/ratelimit"
	"github.com/dotfilings/dotfilings/internal/server"
	"github.com/dotfilings/dotfilings/internal/storage"
	"github.com/dotfilings/dotfilings/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		storage.Module,
		fees.Module,
		ratelimit.Module,
		carrier.Module,
		filing.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake derives the node id from the hostname so replicas
// do not mint colliding ids.
func RegisterSnowflake() (*snowflake.Node, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "dotfilings"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	return snowflake.NewNode(int64(h.Sum32() % 1024))
}
