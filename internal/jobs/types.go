package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a sync job.
type JobStatus string

const (
	// JobStatusPending indicates the job row exists but work has not begun.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates the mailbox is being synced.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the job finished normally.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates an unrecoverable error ended the job.
	JobStatusFailed JobStatus = "failed"
)

// ProgressField names a counter on a SyncJob that can be incremented
// atomically.
type ProgressField string

const (
	FieldProcessedEmails ProgressField = "processed_emails"
	FieldNewEmails       ProgressField = "new_emails"
	FieldTransactions    ProgressField = "transactions"
	FieldStatements      ProgressField = "statements"
)

// SyncJob is the persisted record of one mailbox sync. It is the only
// observable state of a running sync: callers poll it rather than receive
// callbacks. Status moves pending → processing → completed|failed, one
// direction only; a failed job is terminal and is never retried.
type SyncJob struct {
	ID       string    `json:"job_id"`
	UserID   string    `json:"user_id"`
	Status   JobStatus `json:"status"`
	Query    string    `json:"query"`
	Category string    `json:"category,omitempty"`

	// MaxResults caps how many message references the job will list.
	MaxResults int `json:"max_results,omitempty"`

	// TotalEmails is set once, after the reference list is known.
	TotalEmails *int `json:"total_emails,omitempty"`

	// Progress counters. Monotonic non-decreasing; incremented through
	// Store.IncrementProgress, never read-modify-write.
	ProcessedEmails int `json:"processed_emails"`
	NewEmails       int `json:"new_emails"`
	Transactions    int `json:"transactions"`
	Statements      int `json:"statements"`

	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j *SyncJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Store persists sync jobs. IncrementProgress must be implemented as an
// atomic add against the stored value so concurrent writers never lose
// updates.
type Store interface {
	Create(ctx context.Context, job *SyncJob) error
	FindByID(ctx context.Context, jobID string) (*SyncJob, error)
	ListByUser(ctx context.Context, userID string, limit int, category string) ([]*SyncJob, error)
	FindLastCompleted(ctx context.Context, userID, category string) (*SyncJob, error)
	Update(ctx context.Context, job *SyncJob) error
	IncrementProgress(ctx context.Context, jobID string, field ProgressField, amount int) error
}

// Publisher enqueues sync jobs for background execution.
type Publisher interface {
	PublishSync(ctx context.Context, job *SyncJob) error
	Close() error
}

// Consumer pulls sync jobs off a queue and hands them to a handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Stop(ctx context.Context) error
}

// Handler executes one sync job. All job bookkeeping (status transitions,
// counters, error capture) happens inside the handler against the Store;
// a returned error means bookkeeping itself failed and must be surfaced by
// the runner rather than swallowed.
type Handler func(ctx context.Context, job *SyncJob) error
