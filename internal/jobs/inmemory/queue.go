package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/mailspend/internal/jobs"
	"github.com/dvloznov/mailspend/internal/logger"
)

// Queue is an in-memory publisher/consumer for sync jobs built on a Go
// channel. It is suitable for single-instance deployments and tests; a
// multi-instance deployment would swap in a real broker behind the same
// interfaces.
//
// Unlike a generic work queue there is no retry loop: a sync job that
// fails is terminal, and the caller must start a new sync.
type Queue struct {
	jobChan   chan *jobs.SyncJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	closed    bool
}

// NewQueue creates an in-memory job queue. bufferSize bounds how many jobs
// can be pending before PublishSync blocks; workers is the number of
// concurrent sync jobs the consumer runs.
func NewQueue(bufferSize, workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.SyncJob, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
	}
}

// PublishSync implements jobs.Publisher.
func (q *Queue) PublishSync(ctx context.Context, job *jobs.SyncJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements jobs.Consumer. The handler owns all job bookkeeping; an
// error returned from it means that bookkeeping itself failed, and the
// runner's only remaining duty is to make the failure visible in the log.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			if err := handler(ctx, job); err != nil {
				log := logger.FromContext(ctx)
				log.Error().
					Err(err).
					Str("job_id", job.ID).
					Str("user_id", job.UserID).
					Msg("Sync job bookkeeping failed")
			}
		}
	}
}

// Stop implements jobs.Consumer. It stops accepting jobs and waits for
// in-flight syncs to finish or the context to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
