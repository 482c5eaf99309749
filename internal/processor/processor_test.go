package processor

import (
	"context"
	"testing"

	"github.com/rohit/contact-ingest-worker/internal/blobstore"
	"github.com/rohit/contact-ingest-worker/internal/config"
	"github.com/rohit/contact-ingest-worker/internal/domain/models"
	"github.com/rs/zerolog"
)

func testProcessingConfig() config.ProcessingConfig {
	return config.ProcessingConfig{
		MaxRetries:             3,
		RetryDelaySeconds:      5,
		ProgressUpdateInterval: 2,
	}
}

func newTestProcessor(jobs *fakeJobRepo, staging *fakeStagingRepo, issues *fakeIssueRepo, contacts *fakeContactRepo, blobs *blobstore.MemoryStore) *Processor {
	return New(jobs, staging, issues, contacts, blobs, testProcessingConfig(), zerolog.Nop(), nil)
}

func TestProcessJob_InitialFlow_AllValidRowsConsolidates(t *testing.T) {
	job := &models.Job{JobID: 1, UserID: "user-1", ObjectKey: "jobs/1.csv", Status: models.JobStatusPending}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()
	blobs.Put("jobs/1.csv", []byte("email,first_name,last_name,company\nalice@example.com,Alice,Smith,Acme\nbob@example.com,Bob,Jones,Acme\n"))

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	got := jobs.jobs[1]
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("expected job COMPLETED, got %s", got.Status)
	}
	if got.TotalRows != 2 || got.ProcessedRows != 2 || got.IssueCount != 0 {
		t.Fatalf("unexpected job metadata: %+v", got)
	}
	if len(contacts.contacts) != 2 {
		t.Fatalf("expected 2 contacts created, got %d", len(contacts.contacts))
	}
}

func TestProcessJob_InitialFlow_InvalidRowNeedsReview(t *testing.T) {
	job := &models.Job{JobID: 2, UserID: "user-1", ObjectKey: "jobs/2.csv", Status: models.JobStatusPending}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()
	blobs.Put("jobs/2.csv", []byte("email,first_name,last_name,company\nnot-an-email,Alice,Smith,Acme\nbob@example.com,Bob,Jones,Acme\n"))

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	got := jobs.jobs[2]
	if got.Status != models.JobStatusNeedsReview {
		t.Fatalf("expected job NEEDS_REVIEW, got %s", got.Status)
	}
	if got.IssueCount != 1 {
		t.Fatalf("expected 1 issue, got %d", got.IssueCount)
	}
	if len(contacts.contacts) != 0 {
		t.Fatalf("expected no contacts while issues remain, got %d", len(contacts.contacts))
	}
}

func TestProcessJob_InitialFlow_EmptyCSVFailsJob(t *testing.T) {
	job := &models.Job{JobID: 3, UserID: "user-1", ObjectKey: "jobs/3.csv", Status: models.JobStatusPending}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()
	blobs.Put("jobs/3.csv", []byte("email,first_name,last_name,company\n"))

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err == nil {
		t.Fatal("expected error for empty CSV")
	}

	if jobs.jobs[3].Status != models.JobStatusFailed {
		t.Fatalf("expected job FAILED, got %s", jobs.jobs[3].Status)
	}
}

// TestProcessJob_RedeliveryAfterFailedRetries confirms a FAILED job can be
// retried on message redelivery: the queue has no knowledge of job status,
// so the same job_id can arrive again after a transient failure is fixed
// (e.g. the object later appears in blob storage).
func TestProcessJob_RedeliveryAfterFailedRetries(t *testing.T) {
	job := &models.Job{JobID: 4, UserID: "user-1", ObjectKey: "jobs/4.csv", Status: models.JobStatusPending}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err == nil {
		t.Fatal("expected error when the object is missing from blob storage")
	}
	if jobs.jobs[4].Status != models.JobStatusFailed {
		t.Fatalf("expected job FAILED after first attempt, got %s", jobs.jobs[4].Status)
	}

	blobs.Put("jobs/4.csv", []byte("email,first_name,last_name,company\nalice@example.com,Alice,Smith,Acme\n"))

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("ProcessJob returned error on retry: %v", err)
	}
	if jobs.jobs[4].Status != models.JobStatusCompleted {
		t.Fatalf("expected job COMPLETED after retry, got %s", jobs.jobs[4].Status)
	}
	if len(contacts.contacts) != 1 {
		t.Fatalf("expected 1 contact created on retry, got %d", len(contacts.contacts))
	}
}

func TestProcessJob_StaleJobIsNoop(t *testing.T) {
	jobs := newFakeJobRepo()
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), 999, "jobs/missing.csv"); err != nil {
		t.Fatalf("expected nil error for stale job, got %v", err)
	}
}

func TestProcessJob_AlreadyCompletedIsNoop(t *testing.T) {
	job := &models.Job{JobID: 4, UserID: "user-1", ObjectKey: "jobs/4.csv", Status: models.JobStatusCompleted}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("expected nil error for already-completed job, got %v", err)
	}
	if jobs.jobs[4].Status != models.JobStatusCompleted {
		t.Fatalf("expected job to remain COMPLETED, got %s", jobs.jobs[4].Status)
	}
}

func TestProcessJob_ReprocessFlow_ResolvesIssueAfterEdit(t *testing.T) {
	job := &models.Job{JobID: 5, UserID: "user-1", ObjectKey: "jobs/5.csv", Status: models.JobStatusNeedsReview}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()

	badEmail := "not-an-email"
	firstName := "Alice"
	lastName := "Smith"
	company := "Acme"
	s, _ := staging.Create(context.Background(), &models.Staging{
		JobID: job.JobID, Email: &badEmail, FirstName: &firstName, LastName: &lastName, Company: &company,
		Status: models.StagingStatusIssue, RowHash: "hash-1",
	})
	issue, _ := issues.GetOrCreate(context.Background(), job.JobID, models.IssueTypeInvalidEmail, "row_1", nil)
	_ = issues.LinkStaging(context.Background(), issue.IssueID, s.StagingID)

	// Simulate the user fixing the email via an out-of-band edit.
	fixedEmail := "alice@example.com"
	s.Email = &fixedEmail
	staging.rows[s.StagingID] = s

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	if jobs.jobs[5].Status != models.JobStatusCompleted {
		t.Fatalf("expected job COMPLETED after fix, got %s", jobs.jobs[5].Status)
	}
	if !issues.issues[issue.IssueID].Resolved {
		t.Fatal("expected issue to be auto-resolved")
	}
	if staging.rows[s.StagingID].Status != models.StagingStatusSuccess {
		t.Fatalf("expected staging row SUCCESS, got %s", staging.rows[s.StagingID].Status)
	}
}

func TestProcessJob_ReprocessFlow_UnresolvesIssueOnRegression(t *testing.T) {
	job := &models.Job{JobID: 6, UserID: "user-1", ObjectKey: "jobs/6.csv", Status: models.JobStatusNeedsReview}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()

	email1 := "alice@example.com"
	firstName := "Alice"
	lastName := "Smith"
	company := "Acme"
	s1, _ := staging.Create(context.Background(), &models.Staging{
		JobID: job.JobID, Email: &email1, FirstName: &firstName, LastName: &lastName, Company: &company,
		Status: models.StagingStatusReady, RowHash: "hash-1",
	})

	issue, _ := issues.GetOrCreate(context.Background(), job.JobID, models.IssueTypeDuplicateEmail, "alice@example.com", nil)
	_ = issues.LinkStaging(context.Background(), issue.IssueID, s1.StagingID)
	_ = issues.MarkResolved(context.Background(), issue.IssueID, models.SystemResolver, models.AutoResolutionComment)

	// A second row reintroduces the duplicate after resolution.
	s2, _ := staging.Create(context.Background(), &models.Staging{
		JobID: job.JobID, Email: &email1, FirstName: &firstName, LastName: &lastName, Company: &company,
		Status: models.StagingStatusReady, RowHash: "hash-2",
	})
	_ = s2

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	if jobs.jobs[6].Status != models.JobStatusNeedsReview {
		t.Fatalf("expected job NEEDS_REVIEW after regression, got %s", jobs.jobs[6].Status)
	}

	anyUnresolved := false
	for _, issue := range issues.issues {
		if issue.JobID == job.JobID && !issue.Resolved {
			anyUnresolved = true
		}
	}
	if !anyUnresolved {
		t.Fatal("expected at least one unresolved issue after duplicate regression")
	}
}

func TestProcessJob_InitialFlow_IsIdempotentOnRedelivery(t *testing.T) {
	job := &models.Job{JobID: 7, UserID: "user-1", ObjectKey: "jobs/7.csv", Status: models.JobStatusPending}
	jobs := newFakeJobRepo(job)
	staging := newFakeStagingRepo()
	issues := newFakeIssueRepo(staging)
	contacts := newFakeContactRepo()
	blobs := blobstore.NewMemoryStore()
	blobs.Put("jobs/7.csv", []byte("email,first_name,last_name,company\nalice@example.com,Alice,Smith,Acme\n"))

	p := newTestProcessor(jobs, staging, issues, contacts, blobs)

	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("first ProcessJob returned error: %v", err)
	}
	if jobs.jobs[7].Status != models.JobStatusCompleted {
		t.Fatalf("expected COMPLETED after first run, got %s", jobs.jobs[7].Status)
	}

	// Redelivery of the same message after completion must be a no-op.
	if err := p.ProcessJob(context.Background(), job.JobID, job.ObjectKey); err != nil {
		t.Fatalf("second ProcessJob returned error: %v", err)
	}
	if len(contacts.contacts) != 1 {
		t.Fatalf("expected redelivery to create no additional contacts, got %d", len(contacts.contacts))
	}
}
