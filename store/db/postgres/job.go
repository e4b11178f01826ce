package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/store"
)

// CreateIndexingJob creates a pending job row.
func (d *DB) CreateIndexingJob(ctx context.Context, create *store.CreateIndexingJob) (*store.IndexingJob, error) {
	params := create.Params
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal job params")
	}

	// The id is minted client-side so callers can hand it to the background
	// runner before the insert round-trip resolves downstream reads.
	job := &store.IndexingJob{
		ID:        uuid.NewString(),
		ProfileID: &create.ProfileID,
		Type:      create.Type,
		Status:    store.JobStatusPending,
		Params:    params,
	}
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO indexing_job (id, profile_id, type, status, params)
		VALUES (`+placeholders(5)+`)
		RETURNING created_at
	`, job.ID, create.ProfileID, create.Type, string(store.JobStatusPending), paramsJSON).
		Scan(&job.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create indexing job")
	}
	return job, nil
}

// StartIndexingJob transitions a pending job to running. The status guard in
// the WHERE clause keeps the lifecycle forward-only.
func (d *DB) StartIndexingJob(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE indexing_job
		SET status = `+placeholder(1)+`, started_at = now()
		WHERE id = `+placeholder(2)+` AND status = `+placeholder(3),
		string(store.JobStatusRunning), id, string(store.JobStatusPending))
	if err != nil {
		return errors.Wrap(err, "failed to start indexing job")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Wrapf(store.ErrConflict, "job %s is not pending", id)
	}
	return nil
}

// FinishIndexingJob transitions a running job to its terminal status.
func (d *DB) FinishIndexingJob(ctx context.Context, finish *store.FinishIndexingJob) error {
	if finish.Status != store.JobStatusCompleted && finish.Status != store.JobStatusFailed {
		return errors.Wrapf(store.ErrValidation, "terminal job status must be completed or failed: %q", finish.Status)
	}
	result, err := d.db.ExecContext(ctx, `
		UPDATE indexing_job
		SET status = `+placeholder(1)+`,
			processed_items = `+placeholder(2)+`,
			failed_items = `+placeholder(3)+`,
			error_message = `+placeholder(4)+`,
			finished_at = now()
		WHERE id = `+placeholder(5)+` AND status = `+placeholder(6),
		string(finish.Status), finish.ProcessedItems, finish.FailedItems,
		finish.ErrorMessage, finish.ID, string(store.JobStatusRunning))
	if err != nil {
		return errors.Wrap(err, "failed to finish indexing job")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.Wrapf(store.ErrConflict, "job %s is not running", finish.ID)
	}
	return nil
}

// ListIndexingJobs lists jobs newest-first.
func (d *DB) ListIndexingJobs(ctx context.Context, find *store.FindIndexingJob) ([]*store.IndexingJob, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ProfileID != nil {
		args = append(args, *find.ProfileID)
		where = append(where, "profile_id = "+placeholder(len(args)))
	}
	if find.Status != nil {
		args = append(args, string(*find.Status))
		where = append(where, "status = "+placeholder(len(args)))
	}

	limit := find.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := placeholder(len(args))
	args = append(args, find.Offset)
	offsetArg := placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, profile_id, type, status, total_items, processed_items, failed_items,
			params, error_message, started_at, finished_at, created_at
		FROM indexing_job
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC
		LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list indexing jobs")
	}
	defer rows.Close()

	list := []*store.IndexingJob{}
	for rows.Next() {
		var job store.IndexingJob
		var status string
		var profileID sql.NullString
		var errorMessage sql.NullString
		var paramsJSON []byte
		if err := rows.Scan(
			&job.ID,
			&profileID,
			&job.Type,
			&status,
			&job.TotalItems,
			&job.ProcessedItems,
			&job.FailedItems,
			&paramsJSON,
			&errorMessage,
			&job.StartedAt,
			&job.FinishedAt,
			&job.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan indexing job")
		}
		job.Status = store.JobStatus(status)
		if profileID.Valid {
			job.ProfileID = &profileID.String
		}
		if errorMessage.Valid {
			job.ErrorMessage = &errorMessage.String
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &job.Params); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal job params")
			}
		}
		list = append(list, &job)
	}
	return list, rows.Err()
}
