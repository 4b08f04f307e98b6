//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/observability/metrics"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return nil
}

// ProvideEngine assembles a ready-to-run engine on the Lua runtime.
func ProvideEngine(cfg engine.Config, source assets.Source) *engine.Engine {
	wire.Build(
		log.Provide,
		wire.Bind(new(log.Log), new(*log.Logger)),
		metrics.NewMetrics,
		provideRuntime,
		engine.New,
	)
	return nil
}
