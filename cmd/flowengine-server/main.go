// flowengine-server is the DAG workflow engine's REST entrypoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowbridge/engine/internal/builtin"
	"github.com/flowbridge/engine/internal/config"
	"github.com/flowbridge/engine/internal/expression"
	"github.com/flowbridge/engine/internal/infrastructure/logger"
	"github.com/flowbridge/engine/internal/kernel"
	"github.com/flowbridge/engine/internal/platform/api"
	"github.com/flowbridge/engine/internal/platform/ws"
	"github.com/flowbridge/engine/internal/recorder"
	"github.com/flowbridge/engine/internal/registry"
	"github.com/flowbridge/engine/internal/scheduler"
	"github.com/flowbridge/engine/internal/store"
	"github.com/flowbridge/engine/internal/validate"
)

func main() {
	var (
		port        = flag.String("port", "", "server port (overrides config)")
		usePostgres = flag.Bool("postgres", false, "persist workflows to Postgres via the configured DATABASE_DSN instead of the in-memory store")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.Setup(cfg.LogLevel)
	log.Info().Str("version", "1.0.0").Str("port", cfg.Port).Msg("starting flowengine server")

	reg := registry.New()
	if err := builtin.RegisterAllWithOptions(reg, builtin.Options{
		HTTPTimeout:         cfg.NodeTimeout,
		DefaultOpenAIAPIKey: cfg.OpenAIAPIKey,
	}); err != nil {
		log.Error().Err(err).Msg("failed to register built-in nodes")
		os.Exit(1)
	}

	var wfStore store.Store
	if *usePostgres {
		bunStore := store.NewBunStore(cfg.DatabaseDSN)
		ctx := context.Background()
		if err := bunStore.InitSchema(ctx); err != nil {
			log.Error().Err(err).Msg("failed to initialize database schema")
			os.Exit(1)
		}
		wfStore = bunStore
		log.Info().Msg("using BunStore (PostgreSQL)")
	} else {
		wfStore = store.NewMemoryStore()
		log.Info().Msg("using in-memory workflow store")
	}

	validator := validate.New(reg)
	k := kernel.New(reg, expression.New())
	sched := scheduler.New(k)
	rec := recorder.New(cfg.RecorderCapacity)
	sched.Observer = rec

	hub := ws.NewHub(log)
	go hub.Run()
	pumpDone := make(chan struct{})
	defer close(pumpDone)
	go hub.Pump(rec, pumpDone)

	srv := api.NewServer(wfStore, reg, validator, sched, rec, hub, cfg.WebhookSecret, cfg.JWTSigningKey, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	log.Info().
		Str("workflows", "GET|POST /api/workflows").
		Str("run", "POST /api/workflows/{id}/run").
		Str("run_adhoc", "POST /api/workflows/run-adhoc").
		Str("stream", "GET /execution-stream/{id}").
		Str("webhook", "POST|GET|PUT|DELETE /webhook/{workflowId}").
		Msg("available endpoints")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited gracefully")
}
