// Package repository declares the Data Access Layer's operations as Go
// interfaces so the processor can be constructed with either the real
// postgres-backed implementations or in-memory fakes in tests.
package repository

import (
	"context"
	"time"

	"github.com/rohit/contact-ingest-worker/internal/domain/models"
)

// JobRepository is the typed operation set over the jobs table.
type JobRepository interface {
	Get(ctx context.Context, id int) (*models.Job, error)
	UpdateStatus(ctx context.Context, id int, status models.JobStatus, processStart, processEnd *time.Time) error
	UpdateMetadata(ctx context.Context, id int, totalRows, processedRows, issueCount *int) error
}

// StagingRepository is the typed operation set over the staging table.
type StagingRepository interface {
	ExistsByHash(ctx context.Context, jobID int, hash string) (bool, error)
	Create(ctx context.Context, s *models.Staging) (*models.Staging, error)
	GetByJob(ctx context.Context, jobID int) ([]*models.Staging, error)
	GetReadyForConsolidation(ctx context.Context, jobID int) ([]*models.Staging, error)
	UpdateStatus(ctx context.Context, id int64, status models.StagingStatus) error
	HasAny(ctx context.Context, jobID int) (bool, error)
	CountByStatus(ctx context.Context, jobID int, status models.StagingStatus) (int, error)
}

// IssueRepository is the typed operation set over issues and issue_items.
type IssueRepository interface {
	GetOrCreate(ctx context.Context, jobID int, issueType models.IssueType, key string, description *string) (*models.Issue, error)
	LinkStaging(ctx context.Context, issueID int, stagingID int64) error
	GetByJob(ctx context.Context, jobID int) ([]*models.Issue, error)
	GetForStaging(ctx context.Context, stagingID int64) ([]*models.Issue, error)
	LinkedStagingStatuses(ctx context.Context, issueID int) ([]models.StagingStatus, error)
	MarkResolved(ctx context.Context, id int, resolvedBy, comment string) error
	ClearResolved(ctx context.Context, id int) error
	AutoResolveIfAllStagingResolved(ctx context.Context, issueID int) (bool, error)
}

// ContactRepository is the typed operation set over the contacts table.
type ContactRepository interface {
	ExistingEmails(ctx context.Context, emails []string, userID string) (map[string]bool, error)
	CreateFromStaging(ctx context.Context, s *models.Staging, userID string) (*models.Contact, error)
	BatchCreateFromStaging(ctx context.Context, stagings []*models.Staging, userID string) ([]*models.Contact, error)
}
