// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	awsclient "personal-color-workers/internal/common/aws"
	"personal-color-workers/internal/common/camunda"
	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/database"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
	"personal-color-workers/internal/common/observability"
	"personal-color-workers/internal/ensemble"
	"personal-color-workers/internal/providers"
	"personal-color-workers/pkg/registry"

	acp "personal-color-workers/internal/workers/color-analysis/analyze-color-parallel"
	ach "personal-color-workers/internal/workers/color-analysis/analyze-color-hybrid"
	scr "personal-color-workers/internal/workers/color-analysis/save-color-result"
	rp "personal-color-workers/internal/workers/recommendation/recommend-products"
)

// taskHandler is what every worker package's Handler provides.
type taskHandler interface {
	camunda.JobHandler
	GetTaskType() string
}

// infrastructure holds the backing-service clients shared by the workers.
type infrastructure struct {
	postgres      *database.PostgresClient
	redis         *database.RedisClient
	elasticsearch *database.ElasticsearchClient
	sns           *awsclient.SNSClient
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()
	if err := obs.EnableTracing(cfg.Observability.JaegerEndpoint); err != nil {
		log.Warn("Tracing disabled", map[string]interface{}{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkRegistry(cfg.Registry.Path, log)

	camundaClient, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer camundaClient.Close()
	log.Info("Zeebe client connected", nil)

	infra, err := connectInfrastructure(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("infrastructure unavailable", zap.Error(err))
	}
	defer infra.postgres.Close()
	defer infra.redis.Close()

	orchestrator, err := buildOrchestrator(cfg, infra, obs, log)
	if err != nil {
		zapLog.Fatal("ensemble setup failed", zap.Error(err))
	}

	handlers, err := buildHandlers(cfg, orchestrator, infra, obs, log)
	if err != nil {
		zapLog.Fatal("worker setup failed", zap.Error(err))
	}

	var workers []*camunda.CamundaWorker
	for _, h := range handlers {
		taskType := h.GetTaskType()
		if !config.IsWorkerEnabled(cfg, taskType) {
			log.Info("Worker disabled", map[string]interface{}{"taskType": taskType})
			continue
		}
		workers = append(workers, camunda.NewWorker(
			camundaClient.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), h, log,
		))
	}
	log.Info("Workers registered", map[string]interface{}{"count": len(workers)})

	server := newHealthServer(cfg.Observability.MetricsAddress, camundaClient, infra)
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
}

// connectInfrastructure connects Postgres, Redis and Elasticsearch
// concurrently, each with the Zeebe client's retry policy, and prepares the
// schema and product index.
func connectInfrastructure(ctx context.Context, cfg *config.Config, log logger.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	retry := camunda.DefaultRetryConfig

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := camunda.Retry(gctx, retry, log, "postgres connection", pg.Ping); err != nil {
			pg.Close()
			return err
		}
		if err := pg.EnsureSchema(gctx); err != nil {
			pg.Close()
			return err
		}
		infra.postgres = pg
		return nil
	})

	g.Go(func() error {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := camunda.Retry(gctx, retry, log, "redis connection", rdb.Ping); err != nil {
			rdb.Close()
			return err
		}
		infra.redis = rdb
		return nil
	})

	g.Go(func() error {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			return err
		}
		if err := camunda.Retry(gctx, retry, log, "elasticsearch connection", es.Ping); err != nil {
			return err
		}
		if err := es.EnsureProductIndex(gctx, cfg.Database.Elasticsearch.ProductIndex); err != nil {
			return err
		}
		infra.elasticsearch = es
		return nil
	})

	if err := g.Wait(); err != nil {
		if infra.postgres != nil {
			infra.postgres.Close()
		}
		if infra.redis != nil {
			infra.redis.Close()
		}
		return nil, err
	}

	if cfg.Notifications.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			log.Warn("SNS unavailable, color result events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			infra.sns = snsClient
		}
	}

	log.Info("Infrastructure connected", map[string]interface{}{
		"postgres":      cfg.Database.Postgres.Host,
		"redis":         cfg.Database.Redis.Address,
		"elasticsearch": cfg.Database.Elasticsearch.GetURL(),
		"sns":           infra.sns != nil,
	})
	return infra, nil
}

func buildOrchestrator(cfg *config.Config, infra *infrastructure, obs *observability.Observability, log logger.Logger) (*ensemble.Orchestrator, error) {
	ensembleCfg, err := cfg.ToEnsembleConfig()
	if err != nil {
		return nil, err
	}

	adapters, err := providers.Build(cfg, ensembleCfg.ProviderOrder, infra.redis.Client, log)
	if err != nil {
		return nil, err
	}

	return ensemble.NewOrchestrator(ensembleCfg, adapters, log,
		ensemble.WithRecorder(metrics.NewEnsembleRecorder()),
		ensemble.WithTracer(obs.Tracer()),
	)
}

func buildHandlers(cfg *config.Config, orchestrator *ensemble.Orchestrator, infra *infrastructure, obs *observability.Observability, log logger.Logger) ([]taskHandler, error) {
	var publisher scr.EventPublisher
	if infra.sns != nil {
		publisher = infra.sns
	}

	parallel, err := acp.NewHandler(acp.HandlerOptions{AppConfig: cfg, Analyzer: orchestrator, Logger: log, Observability: obs})
	if err != nil {
		return nil, err
	}
	handlers := []taskHandler{parallel}

	ensembleCfg, err := cfg.ToEnsembleConfig()
	if err != nil {
		return nil, err
	}
	if ensembleCfg.HybridEnabled() {
		hybrid, err := ach.NewHandler(ach.HandlerOptions{AppConfig: cfg, Analyzer: orchestrator, Logger: log, Observability: obs})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, hybrid)
	} else {
		log.Warn("Hybrid worker not registered", map[string]interface{}{
			"taskType":      ach.TaskType,
			"providerOrder": cfg.Ensemble.ProviderOrder,
		})
	}
	save, err := scr.NewHandler(scr.HandlerOptions{
		AppConfig:     cfg,
		DB:            infra.postgres.DB,
		Publisher:     publisher,
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		return nil, err
	}
	recommend, err := rp.NewHandler(rp.HandlerOptions{
		AppConfig:     cfg,
		Elasticsearch: infra.elasticsearch.Client,
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		return nil, err
	}

	return append(handlers, save, recommend), nil
}

// checkRegistry warns about workers that the activity registry does not
// declare. A missing registry is not fatal.
func checkRegistry(path string, log logger.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("Activity registry not loaded", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("Activity registry is invalid", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	if missing := reg.Missing([]string{acp.TaskType, ach.TaskType, scr.TaskType, rp.TaskType}); len(missing) > 0 {
		log.Warn("Workers missing from activity registry", map[string]interface{}{"taskTypes": missing})
	}
}

func newHealthServer(addr string, camundaClient *camunda.Client, infra *infrastructure) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, check := range map[string]func(context.Context) error{
			"zeebe":         camundaClient.HealthCheck,
			"postgres":      infra.postgres.Ping,
			"redis":         infra.redis.Ping,
			"elasticsearch": infra.elasticsearch.Ping,
		} {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		checks["time"] = time.Now().Format(time.RFC3339)
		writeStatus(w, status, checks)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
