package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genflow/internal/api"
	"genflow/internal/audit"
	"genflow/internal/billing"
	"genflow/internal/common/config"
	"genflow/internal/common/database"
	"genflow/internal/common/logger"
	"genflow/internal/common/observability"
	"genflow/internal/engine"
	"genflow/internal/engine/engines"
	"genflow/internal/limits"
	"genflow/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting generation orchestrator", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// Engine catalog. A broken definition is a deployment defect; refuse to start.
	registry, err := engine.NewRegistry(engines.All()...)
	if err != nil {
		log.Error("engine registry validation failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	log.Info("engine registry ready", map[string]interface{}{"engines": registry.IDs()})

	redisClient, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.Error("redis init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable at startup", map[string]interface{}{"error": err.Error()})
	}
	cancelPing()

	postgresClient, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Error("postgres init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer postgresClient.Close()

	var auditSink orchestrator.AuditSink
	if cfg.Audit.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			log.Error("elasticsearch init failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		auditSink = audit.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)
	}

	jobClient := orchestrator.NewClient(cfg.JobService, cfg.Submitter, log)
	billingClient := billing.NewClient(cfg.Billing, log)
	limitsStore := limits.NewStore(postgresClient.GetDB(), redisClient.GetClient(), 5*time.Minute, log)
	keyStore := orchestrator.NewRedisKeyStore(redisClient.GetClient(), config.GetDuration(cfg.Submitter.IdempotencyTTL))

	validator := orchestrator.NewValidator(registry)
	estimator := orchestrator.NewEstimator(billingClient, log)
	submitter := orchestrator.NewSubmitter(jobClient, keyStore, obs, log)

	sessions := api.NewSessionManager(
		cfg.Poller, nil,
		validator, estimator, submitter,
		jobClient, limitsStore, billingClient, auditSink, obs,
		log,
	)
	defer sessions.CloseAll()

	apiServer := api.NewServer(sessions, log)

	root := chi.NewRouter()
	root.Mount("/", apiServer.Router())
	root.Handle(cfg.API.MetricsPath, promhttp.Handler())
	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.API.ListenAddress,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.API.ListenAddress})
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		log.Error("http server failed", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("generation orchestrator stopped", nil)
}
