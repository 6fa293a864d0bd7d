//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/noodles-scene/noodles-server/internal/core/observability/log"
	"github.com/noodles-scene/noodles-server/internal/server"
)

// ProvideLogger builds the process-wide logger wire.Build resolves for
// every other provider in this file.
func ProvideLogger() log.Log {
	wire.Build(log.Provide)
	return log.New(log.LevelInfo)
}

// ProvideRuntime builds a server.Runtime from a Config, for programs
// that would rather let wire assemble the dependency graph than call
// server.New directly.
func ProvideRuntime(cfg server.Config) (*server.Runtime, error) {
	wire.Build(server.New)
	return server.New(cfg)
}
