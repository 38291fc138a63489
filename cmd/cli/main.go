// One-shot mailbox sync from the terminal: enqueue a single sync job, wait
// for it to finish and print the counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/mailspend/internal/categorize"
	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/extract"
	"github.com/dvloznov/mailspend/internal/jobs"
	"github.com/dvloznov/mailspend/internal/jobs/inmemory"
	"github.com/dvloznov/mailspend/internal/logger"
	"github.com/dvloznov/mailspend/internal/mailbox"
	"github.com/dvloznov/mailspend/internal/mailsync"
	"github.com/dvloznov/mailspend/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	var (
		user       = flag.String("user", "", "User id to sync (required)")
		query      = flag.String("query", "from:(alerts@hdfcbank.net OR alerts@axisbank.com)", "Base mailbox query")
		category   = flag.String("category", "", "Sync category label")
		maxResults = flag.Int("max-results", 0, "Cap on messages to process (0 = default)")
		timeout    = flag.Duration("timeout", 30*time.Minute, "Give up after this long")
	)
	cfg := config.FromFlags()

	log := logger.New()

	if *user == "" {
		log.Fatal().Msg("Error: -user is required")
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), *timeout)
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

	jobQueue := inmemory.NewQueue(1, 1)

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
		log.Fatal().Err(err).Msg("Failed to start sync worker")
	}

	jobID, err := orch.StartSync(ctx, *user, *query, *category, *maxResults)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync")
	}
	log.Info().Str("job_id", jobID).Msg("Sync started")

	job, err := waitForJob(ctx, orch, jobID)
	if err != nil {
		log.Fatal().Err(err).Str("job_id", jobID).Msg("Sync did not finish")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping queue")
	}

	total := 0
	if job.TotalEmails != nil {
		total = *job.TotalEmails
	}
	fmt.Printf("Sync %s: %s\n", job.ID, job.Status)
	fmt.Printf("  emails:       %d processed / %d listed (%d new)\n", job.ProcessedEmails, total, job.NewEmails)
	fmt.Printf("  transactions: %d\n", job.Transactions)
	fmt.Printf("  statements:   %d\n", job.Statements)
	if job.Status == jobs.JobStatusFailed {
		fmt.Printf("  error: %s\n", job.ErrorMessage)
		os.Exit(1)
	}
}

// waitForJob polls the job row until it reaches a terminal state.
func waitForJob(ctx context.Context, orch *mailsync.Orchestrator, jobID string) (*jobs.SyncJob, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := orch.GetStatus(ctx, jobID)
			if err != nil {
				return nil, err
			}
			if job == nil {
				return nil, fmt.Errorf("job %s disappeared", jobID)
			}
			if job.Terminal() {
				return job, nil
			}
		}
	}
}
