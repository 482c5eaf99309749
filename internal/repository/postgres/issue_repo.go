package postgres

import (
	"context"
	"time"

	"github.com/rohit/contact-ingest-worker/internal/domain/models"
)

// IssueRepository implements repository.IssueRepository for PostgreSQL.
type IssueRepository struct {
	db *DB
}

// NewIssueRepository creates a new IssueRepository.
func NewIssueRepository(db *DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// GetOrCreate upserts on the (job_id, type, key) uniqueness constraint
// (I2) at the database level — never a check-then-insert race.
func (r *IssueRepository) GetOrCreate(ctx context.Context, jobID int, issueType models.IssueType, key string, description *string) (*models.Issue, error) {
	query := `
		INSERT INTO issues (job_id, type, key, resolved, description)
		VALUES ($1, $2, $3, false, $4)
		ON CONFLICT (job_id, type, key) DO UPDATE SET job_id = issues.job_id
		RETURNING *
	`
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, jobID, issueType, key, description); err != nil {
		return nil, err
	}
	return &issue, nil
}

// LinkStaging idempotently associates a staging row with an issue, backed
// by the (issue_id, staging_id) uniqueness constraint (I3).
func (r *IssueRepository) LinkStaging(ctx context.Context, issueID int, stagingID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issue_items (issue_id, staging_id)
		VALUES ($1, $2)
		ON CONFLICT (issue_id, staging_id) DO NOTHING
	`, issueID, stagingID)
	return err
}

// GetByJob returns every issue for a job.
func (r *IssueRepository) GetByJob(ctx context.Context, jobID int) ([]*models.Issue, error) {
	var issues []*models.Issue
	err := r.db.SelectContext(ctx, &issues, "SELECT * FROM issues WHERE job_id = $1 ORDER BY issue_id ASC", jobID)
	return issues, err
}

// GetForStaging returns every issue linked to a staging row.
func (r *IssueRepository) GetForStaging(ctx context.Context, stagingID int64) ([]*models.Issue, error) {
	var issues []*models.Issue
	err := r.db.SelectContext(ctx, &issues, `
		SELECT i.* FROM issues i
		JOIN issue_items ii ON ii.issue_id = i.issue_id
		WHERE ii.staging_id = $1
		ORDER BY i.issue_id ASC
	`, stagingID)
	return issues, err
}

// LinkedStagingStatuses returns the current status of every staging row
// linked to an issue — the raw material for I5 / auto-resolution checks.
func (r *IssueRepository) LinkedStagingStatuses(ctx context.Context, issueID int) ([]models.StagingStatus, error) {
	var statuses []models.StagingStatus
	err := r.db.SelectContext(ctx, &statuses, `
		SELECT s.status FROM staging s
		JOIN issue_items ii ON ii.staging_id = s.staging_id
		WHERE ii.issue_id = $1
	`, issueID)
	return statuses, err
}

// MarkResolved marks an issue resolved with the given actor and comment.
func (r *IssueRepository) MarkResolved(ctx context.Context, id int, resolvedBy, comment string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE issues SET resolved = true, resolved_at = $2, resolved_by = $3, resolution_comment = $4
		WHERE issue_id = $1
	`, id, now, resolvedBy, comment)
	return err
}

// ClearResolved un-resolves an issue, wiping the resolution metadata.
func (r *IssueRepository) ClearResolved(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE issues SET resolved = false, resolved_at = NULL, resolved_by = NULL, resolution_comment = NULL
		WHERE issue_id = $1
	`, id)
	return err
}

// AutoResolveIfAllStagingResolved marks the issue resolved (resolvedBy
// "system", a fixed comment) iff none of its linked staging rows is
// currently ISSUE, and reports whether it did so.
func (r *IssueRepository) AutoResolveIfAllStagingResolved(ctx context.Context, issueID int) (bool, error) {
	statuses, err := r.LinkedStagingStatuses(ctx, issueID)
	if err != nil {
		return false, err
	}
	if len(statuses) == 0 {
		return false, nil
	}

	for _, status := range statuses {
		if status == models.StagingStatusIssue {
			return false, nil
		}
	}

	if err := r.MarkResolved(ctx, issueID, models.SystemResolver, models.AutoResolutionComment); err != nil {
		return false, err
	}
	return true, nil
}
