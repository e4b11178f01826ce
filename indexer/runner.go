package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/contentvec/contentvec/internal/metrics"
	"github.com/contentvec/contentvec/store"
)

// Runner executes indexing runs in the background with a persisted job
// record per run. Enqueue returns as soon as the pending job row exists;
// progress is observable only through that record.
type Runner struct {
	store    *store.Store
	indexer  *Indexer
	exporter *metrics.Exporter

	ctx context.Context
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewRunner creates a Runner whose runs live under ctx. maxConcurrent bounds
// simultaneous runs process-wide.
func NewRunner(ctx context.Context, st *store.Store, indexer *Indexer, exporter *metrics.Exporter, maxConcurrent int64) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Runner{
		store:    st,
		indexer:  indexer,
		exporter: exporter,
		ctx:      ctx,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}
}

// Enqueue creates a pending job for the profile and starts the run in the
// background. The caller gets the job record immediately.
func (r *Runner) Enqueue(ctx context.Context, profileID, jobType string) (*store.IndexingJob, error) {
	job, err := r.store.CreateIndexingJob(ctx, &store.CreateIndexingJob{
		ProfileID: profileID,
		Type:      jobType,
	})
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go r.run(job.ID, profileID)
	return job, nil
}

// Wait blocks until all in-flight runs finish or ctx expires.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(jobID, profileID string) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.finish(jobID, Counts{}, err)
		return
	}
	defer r.sem.Release(1)

	// A start failure still goes through finish: its conflict-recovery path
	// moves the stranded pending row to a terminal state.
	if err := r.store.StartIndexingJob(r.ctx, jobID); err != nil {
		r.finish(jobID, Counts{}, errors.Wrap(err, "failed to start indexing job"))
		return
	}

	counts, err := r.indexer.Run(r.ctx, profileID)
	r.finish(jobID, counts, err)
}

// finish records the terminal job state. It runs on a fresh context so a
// cancelled run can still persist its outcome.
func (r *Runner) finish(jobID string, counts Counts, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	finish := &store.FinishIndexingJob{
		ID:             jobID,
		Status:         store.JobStatusCompleted,
		ProcessedItems: counts.Processed,
		FailedItems:    counts.Failed,
	}
	if runErr != nil {
		message := runErr.Error()
		finish.Status = store.JobStatusFailed
		finish.ErrorMessage = &message
	}

	if r.exporter != nil {
		r.exporter.ObserveIndexRun(runErr != nil)
	}

	// A pending job whose run never started (cancelled before acquire) must
	// still reach a terminal state.
	if err := r.store.FinishIndexingJob(ctx, finish); err != nil {
		if errors.Is(err, store.ErrConflict) {
			if startErr := r.store.StartIndexingJob(ctx, jobID); startErr == nil {
				err = r.store.FinishIndexingJob(ctx, finish)
			}
		}
		if err != nil {
			slog.Error("failed to finish indexing job", "job", jobID, "error", err)
		}
	}

	if runErr != nil {
		slog.Error("indexing run failed", "job", jobID, "error", runErr)
	}
}
