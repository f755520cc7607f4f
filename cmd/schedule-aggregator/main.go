// Command schedule-aggregator wires the settings registry, HTTP client
// facade, response cache, background task runner, and the per-carrier
// adapters into an Aggregator, then exposes it alongside a health and a
// metrics endpoint — the minimal host process next to the library,
// analogous to the teacher's per-service cmd/main.go. The schedule query
// surface itself is an external collaborator's concern (spec.md §1),
// not this process's.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"schedulep2p/internal/aggregator"
	"schedulep2p/internal/bgtask"
	"schedulep2p/internal/carriers"
	"schedulep2p/internal/carriers/cma"
	"schedulep2p/internal/carriers/generic"
	"schedulep2p/internal/carriers/hmm"
	"schedulep2p/internal/carriers/maersk"
	"schedulep2p/internal/carriers/zim"
	"schedulep2p/internal/domain"
	"schedulep2p/internal/settings"
	"schedulep2p/internal/taskmanager"
	"schedulep2p/pkg/cache"
	"schedulep2p/pkg/config"
	"schedulep2p/pkg/httpclient"
	"schedulep2p/pkg/logger"
	"schedulep2p/pkg/metrics"
	"schedulep2p/pkg/server"
)

func allSCACs() []domain.CarrierCode {
	out := []domain.CarrierCode{domain.CarrierZIMU, domain.CarrierHDMU}
	out = append(out, domain.MaerskFamily...)
	out = append(out, domain.GenericFamily...)
	out = append(out, domain.CarrierCMDU, domain.CarrierANNU, domain.CarrierCHNL, domain.CarrierAPLU)
	return out
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("error")
		logger.Fatal("failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	logger.Log.Info("starting schedule-aggregator",
		"version", cfg.App.Version, "environment", cfg.App.Environment)

	if cfg.Metrics.Enabled {
		metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	}

	reg, err := settings.Load(allSCACs())
	if err != nil {
		logger.Fatal("failed to load carrier settings", "error", err)
	}
	logger.Log.Info("carrier settings loaded", "configured", reg.Configured())

	respCache, err := cache.New(&cache.Options{
		Backend:       cfg.Cache.Driver,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		RedisAddr:     cfg.Cache.Address(),
		RedisPassword: reg.Cache().Password.Reveal(),
		RedisDB:       cfg.Cache.DB,
	})
	if err != nil {
		logger.Fatal("failed to open response cache", "error", err)
	}
	defer respCache.Close()

	bg := bgtask.New()

	httpc, err := httpclient.New(cfg.HTTPClient, bg)
	if err != nil {
		logger.Fatal("failed to build http client", "error", err)
	}

	deps := carriers.Deps{
		HTTP: httpc, BG: bg, Settings: reg, Cache: respCache, Log: logger.Log,
	}

	agg := &aggregator.Aggregator{
		Cache:    respCache,
		HTTP:     httpc,
		Settings: reg,
		BG:       bg,
		Log:      logger.Log,
		Metrics:  metrics.Get(),
		TaskOptions: taskmanager.Options{
			DefaultTimeout: cfg.TaskManager.AsyncDefaultTimeout,
			MaxRetries:     cfg.Retry.MaxRetries,
			TimeoutGrowth:  cfg.Retry.TimeoutGrowth,
			RetrySleep:     cfg.Retry.RetrySleep,
		},
		ScheduleExpiry: cfg.TaskManager.ScheduleExpiry,
		Adapters:       buildAdapters(deps),
	}

	// pkg/server.Run starts its own dedicated metrics listener on
	// cfg.Metrics.Port when enabled; this mux only needs the health route.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth(agg))

	srv := server.New(cfg, ":8080", mux)
	if err := srv.Run(); err != nil {
		bg.Wait()
		logger.Fatal("server exited with error", "error", err)
	}
	bg.Wait()
	logger.Log.Info("background cache writes drained, exiting")
}

// buildAdapters erases every carrier package's Fetch into the closure
// shape Aggregator.Adapters expects, draining each lazy (Schedule, error)
// sequence via carriers.Collect so a genuine transport failure reaches
// the aggregator's task manager instead of being swallowed at the
// adapter boundary.
func buildAdapters(deps carriers.Deps) map[domain.CarrierCode]aggregator.Adapter {
	adapters := make(map[domain.CarrierCode]aggregator.Adapter)

	adapters[domain.CarrierZIMU] = func(ctx context.Context, req domain.SearchRequest) ([]domain.Schedule, error) {
		return carriers.Collect(zim.Fetch(ctx, deps, req))
	}
	adapters[domain.CarrierHDMU] = func(ctx context.Context, req domain.SearchRequest) ([]domain.Schedule, error) {
		return carriers.Collect(hmm.Fetch(ctx, deps, req))
	}

	for _, scac := range domain.MaerskFamily {
		scac := scac
		adapters[scac] = func(ctx context.Context, req domain.SearchRequest) ([]domain.Schedule, error) {
			return carriers.Collect(maersk.Fetch(ctx, deps, req, scac))
		}
	}

	for _, scac := range domain.GenericFamily {
		scac := scac
		adapters[scac] = func(ctx context.Context, req domain.SearchRequest) ([]domain.Schedule, error) {
			return carriers.Collect(generic.Fetch(ctx, deps, req, scac))
		}
	}

	for _, scac := range []domain.CarrierCode{domain.CarrierCMDU, domain.CarrierANNU, domain.CarrierCHNL, domain.CarrierAPLU} {
		scac := scac
		adapters[scac] = func(ctx context.Context, req domain.SearchRequest) ([]domain.Schedule, error) {
			return carriers.Collect(cma.Fetch(ctx, deps, req, scac))
		}
	}

	return adapters
}

func handleHealth(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		if agg.Cache != nil {
			if _, err := agg.Cache.Stats(ctx); err != nil {
				status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
