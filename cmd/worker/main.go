// The worker runs scheduled mailbox syncs without the HTTP surface: every
// interval it enqueues a sync job per configured user and lets the queue
// workers drain them. Intended for cron-like deployments next to the api.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

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
	_ = godotenv.Load()

	var (
		users    = flag.String("users", os.Getenv("SYNC_USERS"), "Comma-separated user ids to sync")
		interval = flag.Duration("interval", 30*time.Minute, "Time between sync rounds")
		query    = flag.String("query", "from:(alerts@hdfcbank.net OR alerts@axisbank.com)", "Base mailbox query")
	)
	cfg := config.FromFlags()

	log := logger.New()

	userIDs := splitUsers(*users)
	if len(userIDs) == 0 {
		log.Fatal().Msg("No users configured: set -users or SYNC_USERS")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer db.Close()

	rules, err := categorize.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load categorization rules")
	}
	meta, err := categorize.LoadMeta(cfg.MetaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load category metadata")
	}

	ts, err := mailbox.TokenSourceFromFiles(ctx, cfg.CredentialsPath, cfg.TokenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gmail credentials")
	}
	provider, err := mailbox.NewGmailProvider(ctx, ts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gmail client")
	}

	jobQueue := inmemory.NewQueue(100, cfg.Workers)

	orch := mailsync.New(
		provider,
		sqlite.NewRawEmailStore(db),
		sqlite.NewTransactionStore(db),
		sqlite.NewStatementStore(db),
		sqlite.NewMerchantRuleStore(db),
		sqlite.NewJobStore(db),
		jobQueue,
		extract.DefaultRegistry(),
		categorize.NewEngine(rules, meta),
		mailsync.DefaultConfig(),
		log,
	)

	if err := jobQueue.Start(ctx, orch.Run); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync workers")
	}

	log.Info().
		Int("users", len(userIDs)).
		Dur("interval", *interval).
		Msg("Worker service started")

	enqueueAll := func() {
		for _, userID := range userIDs {
			jobID, err := orch.StartSync(ctx, userID, *query, "", 0)
			if err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue sync")
				continue
			}
			log.Info().Str("user_id", userID).Str("job_id", jobID).Msg("Sync enqueued")
		}
	}

	enqueueAll()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			enqueueAll()
		case <-quit:
			log.Info().Msg("Shutting down worker service...")

			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := jobQueue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error during graceful shutdown")
			}

			log.Info().Msg("Worker service exited")
			return
		}
	}
}

func splitUsers(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
