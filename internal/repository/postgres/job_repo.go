package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rohit/contact-ingest-worker/internal/domain/models"
)

// JobRepository implements repository.JobRepository for PostgreSQL.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Get retrieves a job by ID, returning (nil, nil) if it does not exist —
// the processor treats a missing job as a stale message, not an error.
func (r *JobRepository) Get(ctx context.Context, id int) (*models.Job, error) {
	var job models.Job
	err := r.db.GetContext(ctx, &job, "SELECT * FROM jobs WHERE job_id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job's status, rejecting any edge not listed in
// the JobStatus state machine. processStart/processEnd are applied only
// when non-nil.
func (r *JobRepository) UpdateStatus(ctx context.Context, id int, status models.JobStatus, processStart, processEnd *time.Time) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.JobStatus
	if err := tx.GetContext(ctx, &current, "SELECT status FROM jobs WHERE job_id = $1 FOR UPDATE", id); err != nil {
		return fmt.Errorf("job %d not found: %w", id, err)
	}

	if current != status && !current.CanTransitionTo(status) {
		return fmt.Errorf("illegal job status transition %s -> %s for job %d", current, status, id)
	}

	query := `UPDATE jobs SET status = $2`
	args := []any{id, status}
	argN := 3

	if processStart != nil {
		query += fmt.Sprintf(", process_start = $%d", argN)
		args = append(args, *processStart)
		argN++
	}
	if processEnd != nil {
		query += fmt.Sprintf(", process_end = $%d", argN)
		args = append(args, *processEnd)
		argN++
	}
	query += " WHERE job_id = $1"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateMetadata applies a partial update to total_rows/processed_rows/
// issue_count — only the non-nil fields are written.
func (r *JobRepository) UpdateMetadata(ctx context.Context, id int, totalRows, processedRows, issueCount *int) error {
	if totalRows == nil && processedRows == nil && issueCount == nil {
		return nil
	}

	query := "UPDATE jobs SET "
	args := []any{id}
	argN := 2
	sep := ""

	if totalRows != nil {
		query += fmt.Sprintf("%stotal_rows = $%d", sep, argN)
		args = append(args, *totalRows)
		argN++
		sep = ", "
	}
	if processedRows != nil {
		query += fmt.Sprintf("%sprocessed_rows = $%d", sep, argN)
		args = append(args, *processedRows)
		argN++
		sep = ", "
	}
	if issueCount != nil {
		query += fmt.Sprintf("%sissue_count = $%d", sep, argN)
		args = append(args, *issueCount)
		argN++
	}
	query += " WHERE job_id = $1"

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
