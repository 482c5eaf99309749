package postgres

import (
	"context"

	"github.com/rohit/contact-ingest-worker/internal/domain/models"
)

// StagingRepository implements repository.StagingRepository for PostgreSQL.
type StagingRepository struct {
	db *DB
}

// NewStagingRepository creates a new StagingRepository.
func NewStagingRepository(db *DB) *StagingRepository {
	return &StagingRepository{db: db}
}

// ExistsByHash reports whether a staging row with this (job_id, row_hash)
// already exists — the idempotent-resume check for the initial flow.
func (r *StagingRepository) ExistsByHash(ctx context.Context, jobID int, hash string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM staging WHERE job_id = $1 AND row_hash = $2)", jobID, hash)
	return exists, err
}

// Create inserts a new staging row and returns it with its generated ID
// and timestamp populated.
func (r *StagingRepository) Create(ctx context.Context, s *models.Staging) (*models.Staging, error) {
	query := `
		INSERT INTO staging (job_id, email, first_name, last_name, company, status, row_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING staging_id, created_at
	`
	row := r.db.QueryRowxContext(ctx, query, s.JobID, s.Email, s.FirstName, s.LastName, s.Company, s.Status, s.RowHash)
	if err := row.Scan(&s.StagingID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByJob returns every staging row for a job, ordered by staging_id so
// that CSV row order (and hence deterministic issue creation) is preserved.
func (r *StagingRepository) GetByJob(ctx context.Context, jobID int) ([]*models.Staging, error) {
	var stagings []*models.Staging
	err := r.db.SelectContext(ctx, &stagings,
		"SELECT * FROM staging WHERE job_id = $1 ORDER BY staging_id ASC", jobID)
	return stagings, err
}

// GetReadyForConsolidation returns staging rows in READY status for a job.
func (r *StagingRepository) GetReadyForConsolidation(ctx context.Context, jobID int) ([]*models.Staging, error) {
	var stagings []*models.Staging
	err := r.db.SelectContext(ctx, &stagings,
		"SELECT * FROM staging WHERE job_id = $1 AND status = $2 ORDER BY staging_id ASC",
		jobID, models.StagingStatusReady)
	return stagings, err
}

// UpdateStatus sets a staging row's status.
func (r *StagingRepository) UpdateStatus(ctx context.Context, id int64, status models.StagingStatus) error {
	_, err := r.db.ExecContext(ctx, "UPDATE staging SET status = $2 WHERE staging_id = $1", id, status)
	return err
}

// HasAny reports whether any staging row exists for a job — the branch
// point between the initial and reprocess flows.
func (r *StagingRepository) HasAny(ctx context.Context, jobID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM staging WHERE job_id = $1)", jobID)
	return exists, err
}

// CountByStatus counts staging rows for a job in a given status.
func (r *StagingRepository) CountByStatus(ctx context.Context, jobID int, status models.StagingStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM staging WHERE job_id = $1 AND status = $2", jobID, status)
	return count, err
}
