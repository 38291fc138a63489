// Package mailsync drives incremental, batched, resumable mailbox syncs:
// list message references, fetch bodies in bounded batches, upsert raw
// emails, extract and categorize transactions, and keep the SyncJob row up
// to date. The job row is the caller's only window into progress.
package mailsync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/categorize"
	"github.com/dvloznov/mailspend/internal/dedupe"
	"github.com/dvloznov/mailspend/internal/domain"
	"github.com/dvloznov/mailspend/internal/extract"
	"github.com/dvloznov/mailspend/internal/jobs"
	"github.com/dvloznov/mailspend/internal/mailbox"
	"github.com/dvloznov/mailspend/internal/store"
)

// Config tunes batching and history defaults.
type Config struct {
	// BatchSize is how many message references are processed per batch.
	BatchSize int

	// BatchDelay separates consecutive batches to respect provider rate
	// limits.
	BatchDelay time.Duration

	// PageSize is the reference-listing page size requested from the
	// provider.
	PageSize int64

	// HistoryWindow bounds the first (non-incremental) sync.
	HistoryWindow time.Duration

	// MaxResults caps the total references a single job will process when
	// the caller does not specify a cap.
	MaxResults int
}

// DefaultConfig mirrors the provider limits the pipeline was tuned for.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		BatchDelay:    time.Second,
		PageSize:      500,
		HistoryWindow: 180 * 24 * time.Hour,
		MaxResults:    5000,
	}
}

// Orchestrator owns the sync job state machine. All collaborators are
// injected; the orchestrator holds no hidden global state.
type Orchestrator struct {
	provider mailbox.Provider
	emails   store.RawEmailStore
	txns     store.TransactionStore
	stmts    store.StatementStore
	rules    store.MerchantRuleStore
	jobStore jobs.Store
	queue    jobs.Publisher
	registry *extract.Registry
	engine   *categorize.Engine
	cfg      Config
	log      zerolog.Logger
}

// New creates an orchestrator.
func New(
	provider mailbox.Provider,
	emails store.RawEmailStore,
	txns store.TransactionStore,
	stmts store.StatementStore,
	rules store.MerchantRuleStore,
	jobStore jobs.Store,
	queue jobs.Publisher,
	registry *extract.Registry,
	engine *categorize.Engine,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		provider: provider,
		emails:   emails,
		txns:     txns,
		stmts:    stmts,
		rules:    rules,
		jobStore: jobStore,
		queue:    queue,
		registry: registry,
		engine:   engine,
		cfg:      cfg,
		log:      log,
	}
}

// StartSync creates a pending job row, enqueues it for background
// execution and returns the job id immediately. Progress is observed by
// polling GetStatus.
func (o *Orchestrator) StartSync(ctx context.Context, userID, query, category string, maxResults int) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("StartSync: user id is required")
	}
	if maxResults <= 0 || maxResults > o.cfg.MaxResults {
		maxResults = o.cfg.MaxResults
	}

	job := &jobs.SyncJob{
		ID:         uuid.NewString(),
		UserID:     userID,
		Status:     jobs.JobStatusPending,
		Query:      query,
		Category:   category,
		MaxResults: maxResults,
		CreatedAt:  time.Now().UTC(),
	}

	if err := o.jobStore.Create(ctx, job); err != nil {
		return "", fmt.Errorf("StartSync: creating job: %w", err)
	}
	if err := o.queue.PublishSync(ctx, job); err != nil {
		return "", fmt.Errorf("StartSync: enqueueing job: %w", err)
	}
	return job.ID, nil
}

// GetStatus returns the job row, or nil when the id is unknown.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*jobs.SyncJob, error) {
	return o.jobStore.FindByID(ctx, jobID)
}

// ListRecentJobs returns the user's most recent jobs, newest first.
func (o *Orchestrator) ListRecentJobs(ctx context.Context, userID string, limit int, category string) ([]*jobs.SyncJob, error) {
	return o.jobStore.ListByUser(ctx, userID, limit, category)
}

// Run executes one sync job to completion or failure. It is the queue
// handler: a non-nil return means job bookkeeping itself failed and the
// runner must surface it.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.SyncJob) error {
	log := o.log.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	now := time.Now().UTC()
	job.Status = jobs.JobStatusProcessing
	job.StartedAt = &now
	if err := o.jobStore.Update(ctx, job); err != nil {
		return fmt.Errorf("Run: marking job processing: %w", err)
	}

	query, err := o.resolveQuery(ctx, job)
	if err != nil {
		return o.markFailed(ctx, job, err)
	}
	job.Query = query

	refs, err := o.listAllRefs(ctx, job.UserID, query, job.MaxResults)
	if err != nil {
		// Cannot even list references: fatal for the job.
		return o.markFailed(ctx, job, err)
	}

	total := len(refs)
	job.TotalEmails = &total
	if err := o.jobStore.Update(ctx, job); err != nil {
		return fmt.Errorf("Run: recording total emails: %w", err)
	}
	log.Info().Int("total_emails", total).Str("query", query).Msg("Listed message references")

	userRules, err := o.loadUserRules(ctx, job.UserID)
	if err != nil {
		return o.markFailed(ctx, job, err)
	}

	for start := 0; start < len(refs); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(refs) {
			end = len(refs)
		}
		batch := refs[start:end]

		if err := o.processBatch(ctx, job, batch, userRules, log); err != nil {
			// Counter/bookkeeping failures are store failures: fatal.
			return o.markFailed(ctx, job, err)
		}

		if end < len(refs) && o.cfg.BatchDelay > 0 {
			select {
			case <-time.After(o.cfg.BatchDelay):
			case <-ctx.Done():
				return o.markFailed(ctx, job, ctx.Err())
			}
		}
	}

	done := time.Now().UTC()
	job.Status = jobs.JobStatusCompleted
	job.CompletedAt = &done
	if err := o.jobStore.Update(ctx, job); err != nil {
		return fmt.Errorf("Run: marking job completed: %w", err)
	}
	log.Info().Msg("Sync job completed")
	return nil
}

// resolveQuery appends the incremental or historical window constraint.
// An incremental sync continues from the completion time of the last
// completed job for the same (user, category).
func (o *Orchestrator) resolveQuery(ctx context.Context, job *jobs.SyncJob) (string, error) {
	last, err := o.jobStore.FindLastCompleted(ctx, job.UserID, job.Category)
	if err != nil {
		return "", fmt.Errorf("resolveQuery: finding last completed job: %w", err)
	}

	query := job.Query
	if last != nil && last.CompletedAt != nil {
		return query + " after:" + strconv.FormatInt(last.CompletedAt.Unix(), 10), nil
	}

	cutoff := time.Now().UTC().Add(-o.cfg.HistoryWindow)
	return query + " after:" + strconv.FormatInt(cutoff.Unix(), 10), nil
}

// listAllRefs pages through the provider until the listing is exhausted or
// the result cap is reached.
func (o *Orchestrator) listAllRefs(ctx context.Context, userID, query string, maxResults int) ([]string, error) {
	var refs []string
	pageToken := ""

	for {
		page, err := o.provider.ListMessageRefs(ctx, userID, query, pageToken, o.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("listAllRefs: %w", err)
		}
		refs = append(refs, page.IDs...)

		if maxResults > 0 && len(refs) >= maxResults {
			refs = refs[:maxResults]
			break
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return refs, nil
}

// processBatch fetches one batch and runs each new email through the
// pipeline. Per-item failures are logged and skipped; only store failures
// while updating the job itself propagate.
func (o *Orchestrator) processBatch(ctx context.Context, job *jobs.SyncJob, batch []string, userRules *categorize.UserRules, log zerolog.Logger) error {
	// Every reference in the batch counts as processed, including the ones
	// whose fetch fails. Processed means attempted, not stored.
	if err := o.jobStore.IncrementProgress(ctx, job.ID, jobs.FieldProcessedEmails, len(batch)); err != nil {
		return fmt.Errorf("processBatch: incrementing processed count: %w", err)
	}

	emails, err := o.provider.FetchContentBatch(ctx, job.UserID, batch)
	if err != nil {
		// Whole-batch fetch failure is recoverable: skip the batch.
		log.Warn().Err(err).Int("batch_size", len(batch)).Msg("Skipping batch after fetch failure")
		return nil
	}

	for _, email := range emails {
		isNew, err := o.storeEmail(ctx, email)
		if err != nil {
			log.Warn().Err(err).Str("message_id", email.ProviderMessageID).Msg("Skipping email upsert failure")
			continue
		}
		if !isNew {
			continue
		}
		if err := o.jobStore.IncrementProgress(ctx, job.ID, jobs.FieldNewEmails, 1); err != nil {
			return fmt.Errorf("processBatch: incrementing new count: %w", err)
		}

		if err := o.parseEmail(ctx, job, email, userRules, log); err != nil {
			return err
		}
	}
	return nil
}

// storeEmail upserts the raw email and adopts the store-assigned id.
func (o *Orchestrator) storeEmail(ctx context.Context, email *domain.RawEmail) (bool, error) {
	res, err := o.emails.Upsert(ctx, email)
	if err != nil {
		return false, err
	}
	email.ID = res.ID
	return res.IsNew, nil
}

// parseEmail dispatches to the first capable extractor and persists its
// output. Extraction itself cannot fail; low confidence or missing fields
// mean an empty result. The only errors here are store errors for the
// job counters (fatal) or the transaction rows (logged and skipped).
func (o *Orchestrator) parseEmail(ctx context.Context, job *jobs.SyncJob, email *domain.RawEmail, userRules *categorize.UserRules, log zerolog.Logger) error {
	extractor := o.registry.Dispatch(email)
	if extractor == nil {
		return nil
	}

	txs := extractor.ExtractTransactions(email)
	for _, tx := range txs {
		categorize.Apply(tx, o.engine.Categorize(tx, userRules))
	}
	if len(txs) > 0 {
		if err := o.txns.UpsertMany(ctx, txs); err != nil {
			log.Warn().Err(err).Str("email_id", email.ID).Msg("Skipping transaction persist failure")
		} else if err := o.jobStore.IncrementProgress(ctx, job.ID, jobs.FieldTransactions, len(txs)); err != nil {
			return fmt.Errorf("parseEmail: incrementing transaction count: %w", err)
		}
	}

	if st := extractor.ExtractStatement(email); st != nil {
		if err := o.stmts.Upsert(ctx, st); err != nil {
			log.Warn().Err(err).Str("email_id", email.ID).Msg("Skipping statement persist failure")
		} else if err := o.jobStore.IncrementProgress(ctx, job.ID, jobs.FieldStatements, 1); err != nil {
			return fmt.Errorf("parseEmail: incrementing statement count: %w", err)
		}
	}
	return nil
}

// loadUserRules folds the user's learned merchant rules into the
// per-user override set consulted by the categorization cascade.
func (o *Orchestrator) loadUserRules(ctx context.Context, userID string) (*categorize.UserRules, error) {
	rules, err := o.rules.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loadUserRules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	userRules := &categorize.UserRules{
		ExactMerchants: make(map[string]categorize.CategoryRule, len(rules)),
	}
	for _, r := range rules {
		userRules.ExactMerchants[dedupe.NormalizeMerchant(r.Merchant)] = categorize.CategoryRule{
			Category:    r.Category,
			Subcategory: r.Subcategory,
		}
	}
	return userRules, nil
}

// markFailed flips the job to its terminal failed state. If even that
// update fails the combined error is returned so the task runner can
// surface it instead of losing it.
func (o *Orchestrator) markFailed(ctx context.Context, job *jobs.SyncJob, cause error) error {
	o.log.Error().Err(cause).Str("job_id", job.ID).Msg("Sync job failed")

	now := time.Now().UTC()
	job.Status = jobs.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now

	if err := o.jobStore.Update(ctx, job); err != nil {
		return fmt.Errorf("markFailed: recording failure %q: %w", cause.Error(), err)
	}
	return nil
}
