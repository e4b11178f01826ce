package store

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of an indexing job. Transitions only move
// forward: pending -> running -> completed|failed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job types.
const (
	JobTypeIndex   = "index"
	JobTypeReindex = "reindex"
)

// IndexingJob records one background index/reindex run for observability.
type IndexingJob struct {
	ID             string
	ProfileID      *string
	Type           string
	Status         JobStatus
	TotalItems     *int32
	ProcessedItems int32
	FailedItems    int32
	Params         map[string]any
	ErrorMessage   *string
	StartedAt      *time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
}

// CreateIndexingJob creates a pending job row.
type CreateIndexingJob struct {
	ProfileID string
	Type      string
	Params    map[string]any
}

// FinishIndexingJob moves a running job to a terminal status with its counts.
type FinishIndexingJob struct {
	ID             string
	Status         JobStatus
	ProcessedItems int32
	FailedItems    int32
	ErrorMessage   *string
}

// FindIndexingJob is the find condition for indexing jobs.
type FindIndexingJob struct {
	ProfileID *string
	Status    *JobStatus
	Limit     int
	Offset    int
}

func (s *Store) CreateIndexingJob(ctx context.Context, create *CreateIndexingJob) (*IndexingJob, error) {
	return s.driver.CreateIndexingJob(ctx, create)
}

// StartIndexingJob transitions a pending job to running and stamps started_at.
func (s *Store) StartIndexingJob(ctx context.Context, id string) error {
	return s.driver.StartIndexingJob(ctx, id)
}

// FinishIndexingJob transitions a running job to completed or failed and
// stamps finished_at. Terminal states never transition again.
func (s *Store) FinishIndexingJob(ctx context.Context, finish *FinishIndexingJob) error {
	return s.driver.FinishIndexingJob(ctx, finish)
}

// ListIndexingJobs lists jobs newest-first.
func (s *Store) ListIndexingJobs(ctx context.Context, find *FindIndexingJob) ([]*IndexingJob, error) {
	return s.driver.ListIndexingJobs(ctx, find)
}
