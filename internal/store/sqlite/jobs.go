package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dvloznov/mailspend/internal/jobs"
)

// JobStore implements jobs.Store on SQLite.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates the store over an opened database.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// progressColumns whitelists the counter columns IncrementProgress may
// touch; the field name is interpolated into SQL and must never come from
// user input.
var progressColumns = map[jobs.ProgressField]string{
	jobs.FieldProcessedEmails: "processed_emails",
	jobs.FieldNewEmails:       "new_emails",
	jobs.FieldTransactions:    "transactions",
	jobs.FieldStatements:      "statements",
}

// Create implements jobs.Store.
func (s *JobStore) Create(ctx context.Context, job *jobs.SyncJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_jobs
			(id, user_id, status, query, category, max_results, total_emails,
			 processed_emails, new_emails, transactions, statements, error_message,
			 created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(job.Status), job.Query, job.Category, job.MaxResults,
		nullableInt(job.TotalEmails), job.ProcessedEmails, job.NewEmails, job.Transactions,
		job.Statements, job.ErrorMessage, job.CreatedAt, nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("JobStore.Create: %w", err)
	}
	return nil
}

// FindByID implements jobs.Store; (nil, nil) when the id is unknown.
func (s *JobStore) FindByID(ctx context.Context, jobID string) (*jobs.SyncJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM sync_jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("JobStore.FindByID: %w", err)
	}
	return job, nil
}

// ListByUser implements jobs.Store, newest first.
func (s *JobStore) ListByUser(ctx context.Context, userID string, limit int, category string) ([]*jobs.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE user_id = ?`
	args := []interface{}{userID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("JobStore.ListByUser: %w", err)
	}
	defer rows.Close()

	var result []*jobs.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("JobStore.ListByUser: scan: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// FindLastCompleted implements jobs.Store; (nil, nil) when no completed
// job exists for (user, category). The category must match exactly, with
// the empty string a legitimate value, so an uncategorized sync never
// resumes from a category-scoped job's completion time.
func (s *JobStore) FindLastCompleted(ctx context.Context, userID, category string) (*jobs.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs
		WHERE user_id = ? AND status = ? AND category = ? AND completed_at IS NOT NULL
		ORDER BY completed_at DESC LIMIT 1`
	args := []interface{}{userID, string(jobs.JobStatusCompleted), category}

	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("JobStore.FindLastCompleted: %w", err)
	}
	return job, nil
}

// Update implements jobs.Store. Counters are deliberately excluded: they
// move only through IncrementProgress.
func (s *JobStore) Update(ctx context.Context, job *jobs.SyncJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs
		 SET status = ?, query = ?, total_emails = ?, error_message = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(job.Status), job.Query, nullableInt(job.TotalEmails), job.ErrorMessage,
		nullableTime(job.StartedAt), nullableTime(job.CompletedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("JobStore.Update: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("JobStore.Update: job not found: %s", job.ID)
	}
	return nil
}

// IncrementProgress implements jobs.Store as a database-side atomic add.
func (s *JobStore) IncrementProgress(ctx context.Context, jobID string, field jobs.ProgressField, amount int) error {
	column, ok := progressColumns[field]
	if !ok {
		return fmt.Errorf("JobStore.IncrementProgress: unknown field: %s", field)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE sync_jobs SET %s = %s + ? WHERE id = ?`, column, column),
		amount, jobID,
	)
	if err != nil {
		return fmt.Errorf("JobStore.IncrementProgress: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("JobStore.IncrementProgress: job not found: %s", jobID)
	}
	return nil
}

const jobColumns = `id, user_id, status, query, category, max_results, total_emails,
	processed_emails, new_emails, transactions, statements, error_message,
	created_at, started_at, completed_at`

func scanJob(row rowScanner) (*jobs.SyncJob, error) {
	var job jobs.SyncJob
	var status string
	var total sql.NullInt64
	var started, completed sql.NullTime
	err := row.Scan(
		&job.ID, &job.UserID, &status, &job.Query, &job.Category, &job.MaxResults, &total,
		&job.ProcessedEmails, &job.NewEmails, &job.Transactions, &job.Statements,
		&job.ErrorMessage, &job.CreatedAt, &started, &completed,
	)
	if err != nil {
		return nil, err
	}
	job.Status = jobs.JobStatus(status)
	if total.Valid {
		v := int(total.Int64)
		job.TotalEmails = &v
	}
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

var _ jobs.Store = (*JobStore)(nil)
