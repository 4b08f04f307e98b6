package injector

import (
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/script"
	"github.com/simforge/simforge/internal/core/script/luahost"
)

func provideRuntime(lg log.Log) script.Runtime {
	return luahost.New(lg)
}
