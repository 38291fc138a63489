package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/mailspend/internal/jobs"
)

// Store is an in-memory implementation of jobs.Store. It is safe for
// concurrent use. Data is lost on restart; use the sqlite store for
// persistence across runs.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.SyncJob
}

// NewStore creates a new in-memory sync job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.SyncJob),
	}
}

// Create implements jobs.Store.
func (s *Store) Create(ctx context.Context, job *jobs.SyncJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// FindByID implements jobs.Store. A missing job returns (nil, nil) so
// callers can distinguish "unknown job" from a store failure.
func (s *Store) FindByID(ctx context.Context, jobID string) (*jobs.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, nil
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListByUser implements jobs.Store. Results are newest first; category
// filters when non-empty.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int, category string) ([]*jobs.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.SyncJob
	for _, job := range s.jobs {
		if job.UserID != userID {
			continue
		}
		if category != "" && job.Category != category {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// FindLastCompleted implements jobs.Store. It returns the most recently
// completed job for (userID, category), or (nil, nil) when none exists.
// The category must match exactly; an uncategorized sync only resumes from
// a previous uncategorized sync.
func (s *Store) FindLastCompleted(ctx context.Context, userID, category string) (*jobs.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *jobs.SyncJob
	for _, job := range s.jobs {
		if job.UserID != userID || job.Status != jobs.JobStatusCompleted {
			continue
		}
		if job.Category != category {
			continue
		}
		if job.CompletedAt == nil {
			continue
		}
		if last == nil || job.CompletedAt.After(*last.CompletedAt) {
			last = job
		}
	}

	if last == nil {
		return nil, nil
	}
	jobCopy := *last
	return &jobCopy, nil
}

// Update implements jobs.Store. Progress counters are not written here;
// they only move through IncrementProgress so concurrent increments are
// never overwritten by a stale snapshot.
func (s *Store) Update(ctx context.Context, job *jobs.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.jobs[job.ID]
	if !exists {
		return fmt.Errorf("job not found: %s", job.ID)
	}

	existing.Status = job.Status
	existing.Query = job.Query
	existing.TotalEmails = job.TotalEmails
	existing.ErrorMessage = job.ErrorMessage
	existing.StartedAt = job.StartedAt
	existing.CompletedAt = job.CompletedAt
	return nil
}

// IncrementProgress implements jobs.Store as an atomic add under the
// store lock.
func (s *Store) IncrementProgress(ctx context.Context, jobID string, field jobs.ProgressField, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	switch field {
	case jobs.FieldProcessedEmails:
		job.ProcessedEmails += amount
	case jobs.FieldNewEmails:
		job.NewEmails += amount
	case jobs.FieldTransactions:
		job.Transactions += amount
	case jobs.FieldStatements:
		job.Statements += amount
	default:
		return fmt.Errorf("unknown progress field: %s", field)
	}
	return nil
}

// Ensure Store implements jobs.Store.
var _ jobs.Store = (*Store)(nil)
