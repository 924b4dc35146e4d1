package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/api/handlers"
	"github.com/dvloznov/finance-reminders/internal/api/middleware"
	"github.com/dvloznov/finance-reminders/internal/app"
	"github.com/dvloznov/finance-reminders/internal/config"
	"github.com/dvloznov/finance-reminders/internal/jobs/inmemory"
	"github.com/dvloznov/finance-reminders/internal/logger"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides server.port)")
	flag.Parse()

	cfg, err := config.Load(func(c *config.Config) {
		if *port > 0 {
			c.Server.Port = *port
		}
	})
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(16, cfg.Server.Workers, jobStore,
		inmemory.WithRetries(cfg.Jobs.MaxRetries, cfg.Jobs.RetryDelay))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(logger.WithContext(workerCtx, log), a.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}
	log.Info().Int("workers", cfg.Server.Workers).Msg("Job worker started")

	runsHandler := handlers.NewRunsHandler(jobQueue, jobStore, a.Runs, log)
	webhookHandler := handlers.NewWebhookHandler(cfg.WhatsApp.VerifyToken, a.Tracker, log)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      newRouter(runsHandler, webhookHandler, a.Metrics.Handler(), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting jobs and wait for the in-flight run before cancelling it.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// newRouter builds the HTTP routes wrapped in the middleware chain.
func newRouter(runs *handlers.RunsHandler, webhook *handlers.WebhookHandler, metricsHandler http.Handler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			runs.ListRuns(w, r)
		case http.MethodPost:
			runs.CreateRun(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		switch id {
		case "":
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
		case "history":
			runs.ListHistory(w, r)
		default:
			runs.GetRun(w, r, id)
		}
	})

	mux.HandleFunc("/webhooks/whatsapp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			webhook.Verify(w, r)
		case http.MethodPost:
			webhook.Receive(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", metricsHandler)

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
