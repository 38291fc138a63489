package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/mailspend/internal/api/handlers"
	"github.com/dvloznov/mailspend/internal/api/middleware"
	"github.com/dvloznov/mailspend/internal/categorize"
	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/extract"
	"github.com/dvloznov/mailspend/internal/jobs/inmemory"
	"github.com/dvloznov/mailspend/internal/logger"
	"github.com/dvloznov/mailspend/internal/mailbox"
	"github.com/dvloznov/mailspend/internal/mailsync"
	"github.com/dvloznov/mailspend/internal/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.FromFlags()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

	// Open storage
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer db.Close()

	// Load categorization rules; a missing rule file is a deployment error
	rules, err := categorize.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load categorization rules")
	}
	meta, err := categorize.LoadMeta(cfg.MetaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load category metadata")
	}
	engine := categorize.NewEngine(rules, meta)

	// Gmail provider
	ts, err := mailbox.TokenSourceFromFiles(ctx, cfg.CredentialsPath, cfg.TokenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gmail credentials")
	}
	provider, err := mailbox.NewGmailProvider(ctx, ts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gmail client")
	}

	// Job infrastructure
	jobStore := sqlite.NewJobStore(db)
	jobQueue := inmemory.NewQueue(100, cfg.Workers)

	orch := mailsync.New(
		provider,
		sqlite.NewRawEmailStore(db),
		sqlite.NewTransactionStore(db),
		sqlite.NewStatementStore(db),
		sqlite.NewMerchantRuleStore(db),
		jobStore,
		jobQueue,
		extract.DefaultRegistry(),
		engine,
		mailsync.DefaultConfig(),
		log,
	)

	// Start sync workers in the background
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, orch.Run); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync workers")
	}

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(orch, log)
	categoriesHandler := handlers.NewCategoriesHandler(orch, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.StartSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			syncHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/sync/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			syncHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories/merchant", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			categoriesHandler.BulkCategorize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight syncs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
