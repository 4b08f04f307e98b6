// Command simforge runs a standalone simulation host: it loads the named
// prototypes from an asset directory, spawns each one as it becomes ready
// and hands the world over to their scripts.
//
// Usage:
//
//	simforge -assets ./assets Player=player.prototype.yaml
//
// SIGHUP re-fetches every known prototype descriptor and script asset;
// SIGINT/SIGTERM stop the loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/world"
	"github.com/simforge/simforge/internal/injector"
)

type prototypeRef struct {
	name string
	ref  string
}

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file (otherwise SIMFORGE_* env vars apply)")
		assetRoot   = flag.String("assets", "assets", "root directory for prototype and script assets")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	)
	flag.Parse()

	lg := injector.ProvideLogger()

	protos, err := parsePrototypes(flag.Args())
	if err != nil {
		lg.Fatal("parse arguments", log.Error(err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		lg.Fatal("load config", log.Error(err))
	}

	eng := injector.ProvideEngine(cfg, assets.NewFileSource(*assetRoot))

	for _, pr := range protos {
		eng.LoadPrototype(pr.name, pr.ref)
		name := pr.name
		eng.AddSystem("spawn "+name, func(acc *world.Access) error {
			id, err := eng.Commands().Spawn(acc, name)
			if err != nil {
				return err
			}
			lg.Info("prototype spawned",
				log.String("prototype", name),
				log.Uint64("entity", uint64(id)),
			)
			return nil
		},
			engine.WhenReady(eng.Store(), name),
			engine.Once(),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stopCh
		cancel()
	}()

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go reloadLoop(reloadCh, eng, lg)

	var metricsSrv *http.Server
	if *metricsAddr != "" {
		metricsSrv = serveMetrics(*metricsAddr, eng, lg)
	}

	if err := eng.Run(ctx); err != nil {
		lg.Error("engine run", log.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(context.Background())
	}
	if err := eng.Close(); err != nil {
		lg.Warn("engine close", log.Error(err))
	}
}

func loadConfig(path string) (engine.Config, error) {
	if path != "" {
		return engine.LoadConfigFile(path)
	}
	return engine.ConfigFromEnv()
}

func parsePrototypes(args []string) ([]prototypeRef, error) {
	protos := make([]prototypeRef, 0, len(args))
	for _, arg := range args {
		name, ref, ok := strings.Cut(arg, "=")
		if !ok || name == "" || ref == "" {
			return nil, fmt.Errorf("prototype %q: want NAME=REF", arg)
		}
		protos = append(protos, prototypeRef{name: name, ref: ref})
	}
	return protos, nil
}

// reloadLoop hot-reloads every known descriptor and script on SIGHUP. The
// stores keep serving the old versions until the new ones resolve.
func reloadLoop(ch <-chan os.Signal, eng *engine.Engine, lg log.Log) {
	for range ch {
		lg.Info("reloading assets")
		for _, name := range eng.Store().Names() {
			if err := eng.Reload(name); err != nil {
				lg.Warn("reload prototype",
					log.String("prototype", name),
					log.Error(err),
				)
			}
		}
		for _, info := range eng.Host().Contexts() {
			if err := eng.InvalidateScript(info.Script); err != nil {
				lg.Warn("reload script",
					log.String("script", info.Script),
					log.Error(err),
				)
			}
		}
	}
}

func serveMetrics(addr string, eng *engine.Engine, lg log.Log) *http.Server {
	registry := prometheus.NewRegistry()
	if err := eng.Metrics().Register(registry); err != nil {
		lg.Warn("register metrics", log.Error(err))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		lg.Info("metrics listening", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics server", log.Error(err))
		}
	}()
	return srv
}
