package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	db_models "admin-console-backend/internal/models"
	"admin-console-backend/internal/store"
)

// --- Ingestion Job Methods ---

const createIngestionJob = `-- name: CreateIngestionJob :one
INSERT INTO ingestion_jobs (
    id, filename, status
) VALUES (
    $1, $2, 'pending'
)
RETURNING id, filename, status, inserted, updated, skipped, error_details, created_at, updated_at;
`

// CreateIngestionJob registers a new job in the pending state. The caller
// supplies the ID so it can be returned to the client before processing starts.
func (s *PostgresStore) CreateIngestionJob(ctx context.Context, arg store.CreateIngestionJobParams) (*db_models.IngestionJob, error) {
	row := s.db.QueryRow(ctx, createIngestionJob, arg.ID, arg.Filename)
	job := &db_models.IngestionJob{}
	err := row.Scan(
		&job.ID,
		&job.Filename,
		&job.Status,
		&job.Inserted,
		&job.Updated,
		&job.Skipped,
		&job.ErrorDetails,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateIngestionJob: Failed exec/scan for job %s (%s): %v", arg.ID, arg.Filename, err)
		return nil, fmt.Errorf("database error creating ingestion job: %w", err)
	}

	log.Printf("[PostgresStore] CreateIngestionJob: Registered job %s for file %q", job.ID, job.Filename)
	return job, nil
}

const getIngestionJobByID = `-- name: GetIngestionJobByID :one
SELECT id, filename, status, inserted, updated, skipped, error_details, created_at, updated_at
FROM ingestion_jobs
WHERE id = $1;
`

func (s *PostgresStore) GetIngestionJobByID(ctx context.Context, jobID uuid.UUID) (*db_models.IngestionJob, error) {
	row := s.db.QueryRow(ctx, getIngestionJobByID, jobID)
	job := &db_models.IngestionJob{}
	err := row.Scan(
		&job.ID,
		&job.Filename,
		&job.Status,
		&job.Inserted,
		&job.Updated,
		&job.Skipped,
		&job.ErrorDetails,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetIngestionJobByID: Failed query/scan for job %s: %v", jobID, err)
		return nil, fmt.Errorf("database error fetching ingestion job: %w", err)
	}
	return job, nil
}

const listIngestionJobs = `-- name: ListIngestionJobs :many
SELECT id, filename, status, inserted, updated, skipped, error_details, created_at, updated_at
FROM ingestion_jobs
ORDER BY created_at DESC;
`

func (s *PostgresStore) ListIngestionJobs(ctx context.Context) ([]db_models.IngestionJob, error) {
	rows, err := s.db.Query(ctx, listIngestionJobs)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListIngestionJobs: Failed query: %v", err)
		return nil, fmt.Errorf("database error listing ingestion jobs: %w", err)
	}
	defer rows.Close()

	jobs := []db_models.IngestionJob{}
	for rows.Next() {
		var job db_models.IngestionJob
		if err := rows.Scan(
			&job.ID,
			&job.Filename,
			&job.Status,
			&job.Inserted,
			&job.Updated,
			&job.Skipped,
			&job.ErrorDetails,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			log.Printf("ERROR [PostgresStore] ListIngestionJobs: Failed scanning row: %v", err)
			return nil, fmt.Errorf("database error scanning ingestion job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating ingestion jobs: %w", err)
	}
	return jobs, nil
}

const markJobRunning = `-- name: MarkJobRunning :exec
UPDATE ingestion_jobs
SET status = 'running', updated_at = NOW()
WHERE id = $1 AND status = 'pending';
`

// MarkJobRunning transitions a pending job to running. The status guard keeps
// the transition one-way even if the worker is invoked twice for the same job.
func (s *PostgresStore) MarkJobRunning(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, markJobRunning, jobID)
	if err != nil {
		log.Printf("ERROR [PostgresStore] MarkJobRunning: Failed exec for job %s: %v", jobID, err)
		return fmt.Errorf("database error marking job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const markJobSucceeded = `-- name: MarkJobSucceeded :exec
UPDATE ingestion_jobs
SET status = 'succeeded', inserted = $2, updated = $3, skipped = $4, error_details = $5, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'running');
`

// MarkJobSucceeded finalizes a job with its counts. The status guard ensures a
// terminal state, once written, is never overwritten.
func (s *PostgresStore) MarkJobSucceeded(ctx context.Context, jobID uuid.UUID, counts store.JobCounts, errorDetails json.RawMessage) error {
	tag, err := s.db.Exec(ctx, markJobSucceeded, jobID, counts.Inserted, counts.Updated, counts.Skipped, errorDetails)
	if err != nil {
		log.Printf("ERROR [PostgresStore] MarkJobSucceeded: Failed exec for job %s: %v", jobID, err)
		return fmt.Errorf("database error marking job succeeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	log.Printf("[PostgresStore] MarkJobSucceeded: Job %s finalized (inserted=%d, updated=%d, skipped=%d)", jobID, counts.Inserted, counts.Updated, counts.Skipped)
	return nil
}

const markJobFailed = `-- name: MarkJobFailed :exec
UPDATE ingestion_jobs
SET status = 'failed', error_details = $2, updated_at = NOW()
WHERE id = $1 AND status IN ('pending', 'running');
`

func (s *PostgresStore) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errorDetails json.RawMessage) error {
	tag, err := s.db.Exec(ctx, markJobFailed, jobID, errorDetails)
	if err != nil {
		log.Printf("ERROR [PostgresStore] MarkJobFailed: Failed exec for job %s: %v", jobID, err)
		return fmt.Errorf("database error marking job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	log.Printf("[PostgresStore] MarkJobFailed: Job %s marked failed", jobID)
	return nil
}
