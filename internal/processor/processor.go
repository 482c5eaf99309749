// Package processor implements the job processor: the state machine that
// turns a queued ingestion job into staging rows, issues, and contacts.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rohit/contact-ingest-worker/internal/blobstore"
	"github.com/rohit/contact-ingest-worker/internal/config"
	"github.com/rohit/contact-ingest-worker/internal/csvdecode"
	"github.com/rohit/contact-ingest-worker/internal/domain/models"
	"github.com/rohit/contact-ingest-worker/internal/metrics"
	"github.com/rohit/contact-ingest-worker/internal/repository"
	"github.com/rohit/contact-ingest-worker/internal/validation"
	"github.com/rs/zerolog"

	ingesterrors "github.com/rohit/contact-ingest-worker/internal/domain/errors"
)

// Processor owns the collaborators needed to carry a job from PENDING (or
// NEEDS_REVIEW) through to a terminal status.
type Processor struct {
	jobs     repository.JobRepository
	staging  repository.StagingRepository
	issues   repository.IssueRepository
	contacts repository.ContactRepository
	blobs    blobstore.BlobStore
	cfg      config.ProcessingConfig
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

// New constructs a Processor from its collaborators.
func New(
	jobs repository.JobRepository,
	staging repository.StagingRepository,
	issues repository.IssueRepository,
	contacts repository.ContactRepository,
	blobs blobstore.BlobStore,
	cfg config.ProcessingConfig,
	logger zerolog.Logger,
	collector *metrics.Collector,
) *Processor {
	return &Processor{
		jobs:     jobs,
		staging:  staging,
		issues:   issues,
		contacts: contacts,
		blobs:    blobs,
		cfg:      cfg,
		logger:   logger,
		metrics:  collector,
	}
}

// ProcessJob is the entry point invoked once per queue message. It is
// idempotent and safe to redeliver: a stale or already-completed job
// returns success without doing anything further.
func (p *Processor) ProcessJob(ctx context.Context, jobID int, objectKey string) error {
	start := time.Now()
	outcome := "failed"
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordJob(outcome, time.Since(start).Seconds())
		}
	}()

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "jobs.Get", Err: err}
	}
	if job == nil {
		outcome = "stale"
		p.logger.Info().Int("job_id", jobID).Msg("job not found, treating message as stale")
		return nil
	}
	if job.Status == models.JobStatusCompleted {
		outcome = "duplicate"
		p.logger.Info().Int("job_id", jobID).Msg("job already completed, treating message as duplicate delivery")
		return nil
	}

	log := p.logger.With().Int("job_id", jobID).Logger()

	hasStaging, err := p.staging.HasAny(ctx, jobID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "staging.HasAny", Err: err}
	}

	if hasStaging {
		if err := p.reprocessFlow(ctx, job, log); err != nil {
			p.failJob(ctx, job.JobID, log, err)
			return err
		}
	} else {
		if err := p.initialFlow(ctx, job, objectKey, log); err != nil {
			p.failJob(ctx, job.JobID, log, err)
			return err
		}
	}

	final, err := p.jobs.Get(ctx, jobID)
	if err == nil && final != nil {
		outcome = strings.ToLower(string(final.Status))
	}
	return nil
}

// failJob transitions the job to FAILED on any unhandled processing error,
// logging the transition failure itself rather than masking the original
// error.
func (p *Processor) failJob(ctx context.Context, jobID int, log zerolog.Logger, cause error) {
	now := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, jobID, models.JobStatusFailed, nil, &now); err != nil {
		log.Error().Err(err).Msg("failed to transition job to FAILED after processing error")
	}
	log.Error().Err(cause).Msg("job processing failed")
}

// initialFlow implements §4.4.1: first-time ingestion of a job's CSV.
func (p *Processor) initialFlow(ctx context.Context, job *models.Job, objectKey string, log zerolog.Logger) error {
	now := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, job.JobID, models.JobStatusProcessing, &now, nil); err != nil {
		return fmt.Errorf("transitioning to PROCESSING: %w", err)
	}

	raw, err := p.blobs.Fetch(ctx, objectKey)
	if err != nil {
		return &ingesterrors.JobFatalError{JobID: job.JobID, Reason: "failed to fetch object from blob storage", Err: err}
	}

	decodeStart := time.Now()
	decoded, err := csvdecode.Decode(raw)
	if p.metrics != nil {
		p.metrics.RecordCSVDecode(time.Since(decodeStart).Seconds())
	}
	if err != nil {
		return &ingesterrors.JobFatalError{JobID: job.JobID, Reason: "failed to decode CSV", Err: err}
	}
	if len(decoded.Rows) == 0 {
		return &ingesterrors.JobFatalError{JobID: job.JobID, Reason: "CSV contained no data rows"}
	}

	duplicateEmails := validation.DuplicateEmails(decoded.Rows)
	allEmails := make([]string, 0, len(decoded.Rows))
	seen := make(map[string]bool)
	for _, row := range decoded.Rows {
		normalized := validation.NormalizeEmail(row["email"])
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		allEmails = append(allEmails, normalized)
	}
	existingEmails, err := p.contacts.ExistingEmails(ctx, allEmails, job.UserID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "contacts.ExistingEmails", Err: err}
	}

	issueCount := 0
	processedRows := 0

	for i, row := range decoded.Rows {
		rowNumber := i + 1

		if err := p.processInitialRow(ctx, job, rowNumber, row, duplicateEmails, existingEmails, &issueCount, log); err != nil {
			log.Warn().Err(err).Int("row_number", rowNumber).Msg("skipping row after per-row failure")
		}

		processedRows++
		if processedRows%p.cfg.ProgressUpdateInterval == 0 {
			pr := processedRows
			if err := p.jobs.UpdateMetadata(ctx, job.JobID, nil, &pr, nil); err != nil {
				log.Warn().Err(err).Msg("failed to checkpoint processed_rows")
			}
		}
	}

	total := len(decoded.Rows)
	if err := p.jobs.UpdateMetadata(ctx, job.JobID, &total, &processedRows, &issueCount); err != nil {
		return &ingesterrors.TransientError{Op: "jobs.UpdateMetadata", Err: err}
	}

	if issueCount > 0 {
		end := time.Now().UTC()
		if err := p.jobs.UpdateStatus(ctx, job.JobID, models.JobStatusNeedsReview, nil, &end); err != nil {
			return fmt.Errorf("transitioning to NEEDS_REVIEW: %w", err)
		}
		return nil
	}

	return p.consolidate(ctx, job.JobID, job.UserID, log)
}

// processInitialRow handles one CSV row of the initial flow: hash/resume
// check, staging creation, validation, and issue linking. It never returns
// an error that should abort the job — failures are logged by the caller
// and treated as a skipped row, matching §4.4.1's per-row isolation rule.
func (p *Processor) processInitialRow(
	ctx context.Context,
	job *models.Job,
	rowNumber int,
	row map[string]string,
	duplicateEmails, existingEmails map[string]bool,
	issueCount *int,
	log zerolog.Logger,
) error {
	hash, err := rowHash(job.JobID, rowNumber, row)
	if err != nil {
		return &ingesterrors.RowError{RowNumber: rowNumber, Err: err}
	}

	exists, err := p.staging.ExistsByHash(ctx, job.JobID, hash)
	if err != nil {
		return &ingesterrors.RowError{RowNumber: rowNumber, Err: err}
	}
	if exists {
		return nil
	}

	s := &models.Staging{
		JobID:     job.JobID,
		Email:     ptrOrNil(row["email"]),
		FirstName: ptrOrNil(row["first_name"]),
		LastName:  ptrOrNil(row["last_name"]),
		Company:   ptrOrNil(row["company"]),
		Status:    models.StagingStatusIssue,
		RowHash:   hash,
	}
	s, err = p.staging.Create(ctx, s)
	if err != nil {
		return &ingesterrors.RowError{RowNumber: rowNumber, Err: err}
	}

	result := validation.Validate(rowNumber, row, duplicateEmails, existingEmails)
	if result.Valid {
		if err := p.staging.UpdateStatus(ctx, s.StagingID, models.StagingStatusReady); err != nil {
			return &ingesterrors.RowError{RowNumber: rowNumber, Err: err}
		}
		if p.metrics != nil {
			p.metrics.RecordRow("valid")
		}
		return nil
	}

	normalized := validation.NormalizeEmail(row["email"])
	issueKey := normalized
	if issueKey == "" {
		issueKey = fmt.Sprintf("row_%d", rowNumber)
	}
	description := result.Message()
	issue, err := p.issues.GetOrCreate(ctx, job.JobID, result.Type, issueKey, &description)
	if err != nil {
		return &ingesterrors.RowError{RowNumber: rowNumber, Err: err}
	}
	if err := p.issues.LinkStaging(ctx, issue.IssueID, s.StagingID); err != nil {
		return &ingesterrors.RowError{RowNumber: rowNumber, Err: err}
	}
	*issueCount++
	if p.metrics != nil {
		p.metrics.RecordRow("issue")
		p.metrics.IssuesCreatedTotal.Inc()
	}
	return nil
}

// reprocessFlow implements §4.4.2: re-validating existing staging rows
// without re-reading the CSV.
func (p *Processor) reprocessFlow(ctx context.Context, job *models.Job, log zerolog.Logger) error {
	now := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, job.JobID, models.JobStatusProcessing, &now, nil); err != nil {
		return fmt.Errorf("transitioning to PROCESSING: %w", err)
	}

	allStaging, err := p.staging.GetByJob(ctx, job.JobID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "staging.GetByJob", Err: err}
	}

	active := make([]*models.Staging, 0, len(allStaging))
	for _, s := range allStaging {
		if s.Status == models.StagingStatusDiscard {
			continue
		}
		active = append(active, s)
	}

	rows := make([]map[string]string, 0, len(active))
	for _, s := range active {
		rows = append(rows, s.Row())
	}
	duplicateEmails := validation.DuplicateEmails(rows)

	uniqueEmails := make([]string, 0, len(active))
	seen := make(map[string]bool)
	for _, row := range rows {
		normalized := validation.NormalizeEmail(row["email"])
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		uniqueEmails = append(uniqueEmails, normalized)
	}
	existingEmails, err := p.contacts.ExistingEmails(ctx, uniqueEmails, job.UserID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "contacts.ExistingEmails", Err: err}
	}

	issueCount := 0
	processedRows := 0

	for _, s := range active {
		if err := p.processReprocessRow(ctx, job, s, duplicateEmails, existingEmails, &issueCount, log); err != nil {
			log.Warn().Err(err).Int64("staging_id", s.StagingID).Msg("skipping staging row after per-row failure")
		}

		processedRows++
		if processedRows%p.cfg.ProgressUpdateInterval == 0 {
			pr := processedRows
			if err := p.jobs.UpdateMetadata(ctx, job.JobID, nil, &pr, nil); err != nil {
				log.Warn().Err(err).Msg("failed to checkpoint processed_rows")
			}
		}
	}

	unresolvedIssues, err := p.countUnresolvedIssues(ctx, job.JobID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "issues.GetByJob", Err: err}
	}

	if err := p.jobs.UpdateMetadata(ctx, job.JobID, nil, &processedRows, &unresolvedIssues); err != nil {
		return &ingesterrors.TransientError{Op: "jobs.UpdateMetadata", Err: err}
	}

	if unresolvedIssues > 0 {
		end := time.Now().UTC()
		if err := p.jobs.UpdateStatus(ctx, job.JobID, models.JobStatusNeedsReview, nil, &end); err != nil {
			return fmt.Errorf("transitioning to NEEDS_REVIEW: %w", err)
		}
		return nil
	}

	return p.consolidate(ctx, job.JobID, job.UserID, log)
}

// processReprocessRow handles one non-DISCARD staging row of the reprocess
// flow: re-validation, auto-resolution on the valid branch, and
// un-resolve-then-relink on the invalid branch.
func (p *Processor) processReprocessRow(
	ctx context.Context,
	job *models.Job,
	s *models.Staging,
	duplicateEmails, existingEmails map[string]bool,
	issueCount *int,
	log zerolog.Logger,
) error {
	row := s.Row()
	result := validation.Validate(int(s.StagingID), row, duplicateEmails, existingEmails)

	if result.Valid {
		if err := p.staging.UpdateStatus(ctx, s.StagingID, models.StagingStatusReady); err != nil {
			return err
		}
		linked, err := p.issues.GetForStaging(ctx, s.StagingID)
		if err != nil {
			return err
		}
		for _, issue := range linked {
			resolved, err := p.issues.AutoResolveIfAllStagingResolved(ctx, issue.IssueID)
			if err != nil {
				return err
			}
			if resolved && p.metrics != nil {
				p.metrics.IssuesResolvedTotal.Inc()
			}
		}
		if p.metrics != nil {
			p.metrics.RecordRow("valid")
		}
		return nil
	}

	normalized := validation.NormalizeEmail(row["email"])
	issueKey := normalized
	if issueKey == "" {
		issueKey = fmt.Sprintf("staging_%d", s.StagingID)
	}
	description := result.Message()
	issue, err := p.issues.GetOrCreate(ctx, job.JobID, result.Type, issueKey, &description)
	if err != nil {
		return err
	}

	if issue.Resolved {
		// Unresolve only if another linked row is already ISSUE. The current
		// row's own DB status hasn't been written yet at this point, so this
		// check never sees it — a resolved issue whose only failing row is
		// the current one stays resolved until a later pass.
		statuses, err := p.issues.LinkedStagingStatuses(ctx, issue.IssueID)
		if err != nil {
			return err
		}
		if anyIssue(statuses) {
			if err := p.issues.ClearResolved(ctx, issue.IssueID); err != nil {
				return err
			}
		}
	}

	if err := p.issues.LinkStaging(ctx, issue.IssueID, s.StagingID); err != nil {
		return err
	}
	if err := p.staging.UpdateStatus(ctx, s.StagingID, models.StagingStatusIssue); err != nil {
		return err
	}
	*issueCount++
	if p.metrics != nil {
		p.metrics.RecordRow("issue")
	}
	return nil
}

// countUnresolvedIssues counts issues for a job whose resolved flag is
// false, the branch condition for §4.4.2 step 8.
func (p *Processor) countUnresolvedIssues(ctx context.Context, jobID int) (int, error) {
	all, err := p.issues.GetByJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, issue := range all {
		if !issue.Resolved {
			count++
		}
	}
	return count, nil
}

// consolidate implements §4.4.3: promoting READY staging rows to contacts.
func (p *Processor) consolidate(ctx context.Context, jobID int, userID string, log zerolog.Logger) error {
	ready, err := p.staging.GetReadyForConsolidation(ctx, jobID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "staging.GetReadyForConsolidation", Err: err}
	}

	if len(ready) == 0 {
		end := time.Now().UTC()
		if err := p.jobs.UpdateStatus(ctx, jobID, models.JobStatusCompleted, nil, &end); err != nil {
			return fmt.Errorf("transitioning to COMPLETED: %w", err)
		}
		return nil
	}

	created, err := p.contacts.BatchCreateFromStaging(ctx, ready, userID)
	if err != nil {
		return &ingesterrors.TransientError{Op: "contacts.BatchCreateFromStaging", Err: err}
	}
	if p.metrics != nil {
		for range created {
			p.metrics.ContactsCreatedTotal.Inc()
		}
	}

	for _, s := range ready {
		if err := p.staging.UpdateStatus(ctx, s.StagingID, models.StagingStatusSuccess); err != nil {
			log.Warn().Err(err).Int64("staging_id", s.StagingID).Msg("failed to mark staging row SUCCESS after consolidation")
		}
	}

	end := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, jobID, models.JobStatusCompleted, nil, &end); err != nil {
		return fmt.Errorf("transitioning to COMPLETED: %w", err)
	}
	return nil
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func anyIssue(statuses []models.StagingStatus) bool {
	for _, s := range statuses {
		if s == models.StagingStatusIssue {
			return true
		}
	}
	return false
}
