//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package di

import (
	"github.com/google/wire"

	"github.com/modforge/modforge/internal/core/engine"
	"github.com/modforge/modforge/internal/core/hooks"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/observability/log"
)

func provideLevel() log.Level {
	return log.LevelInfo
}

func provideLog(l *log.Logger) log.Log {
	return l
}

// ProvideEngine assembles a fully bound Engine for a host.
func ProvideEngine(h host.Host, cfg engine.Config) *engine.Engine {
	wire.Build(provideLevel, log.New, provideLog, hooks.NewDispatcher, engine.New)
	return nil
}
