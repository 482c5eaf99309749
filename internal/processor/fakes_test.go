package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/rohit/contact-ingest-worker/internal/domain/models"
)

// fakeJobRepo is an in-memory JobRepository used by processor tests, and
// enforces the same transition rule as the postgres implementation so a
// test exercising an illegal edge fails the same way production would.
type fakeJobRepo struct {
	jobs map[int]*models.Job
}

func newFakeJobRepo(jobs ...*models.Job) *fakeJobRepo {
	r := &fakeJobRepo{jobs: make(map[int]*models.Job)}
	for _, j := range jobs {
		r.jobs[j.JobID] = j
	}
	return r
}

func (r *fakeJobRepo) Get(ctx context.Context, id int) (*models.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) UpdateStatus(ctx context.Context, id int, status models.JobStatus, processStart, processEnd *time.Time) error {
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	if j.Status != status && !j.Status.CanTransitionTo(status) {
		return fmt.Errorf("illegal job status transition %s -> %s", j.Status, status)
	}
	j.Status = status
	if processStart != nil {
		j.ProcessStart = processStart
	}
	if processEnd != nil {
		j.ProcessEnd = processEnd
	}
	return nil
}

func (r *fakeJobRepo) UpdateMetadata(ctx context.Context, id int, totalRows, processedRows, issueCount *int) error {
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	if totalRows != nil {
		j.TotalRows = *totalRows
	}
	if processedRows != nil {
		j.ProcessedRows = *processedRows
	}
	if issueCount != nil {
		j.IssueCount = *issueCount
	}
	return nil
}

// fakeStagingRepo is an in-memory StagingRepository.
type fakeStagingRepo struct {
	rows   map[int64]*models.Staging
	nextID int64
}

func newFakeStagingRepo() *fakeStagingRepo {
	return &fakeStagingRepo{rows: make(map[int64]*models.Staging)}
}

func (r *fakeStagingRepo) ExistsByHash(ctx context.Context, jobID int, hash string) (bool, error) {
	for _, s := range r.rows {
		if s.JobID == jobID && s.RowHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStagingRepo) Create(ctx context.Context, s *models.Staging) (*models.Staging, error) {
	r.nextID++
	s.StagingID = r.nextID
	s.CreatedAt = time.Now().UTC()
	cp := *s
	r.rows[cp.StagingID] = &cp
	return &cp, nil
}

func (r *fakeStagingRepo) GetByJob(ctx context.Context, jobID int) ([]*models.Staging, error) {
	var out []*models.Staging
	for i := int64(1); i <= r.nextID; i++ {
		if s, ok := r.rows[i]; ok && s.JobID == jobID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeStagingRepo) GetReadyForConsolidation(ctx context.Context, jobID int) ([]*models.Staging, error) {
	all, _ := r.GetByJob(ctx, jobID)
	var out []*models.Staging
	for _, s := range all {
		if s.Status == models.StagingStatusReady {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeStagingRepo) UpdateStatus(ctx context.Context, id int64, status models.StagingStatus) error {
	s, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("staging %d not found", id)
	}
	s.Status = status
	return nil
}

func (r *fakeStagingRepo) HasAny(ctx context.Context, jobID int) (bool, error) {
	for _, s := range r.rows {
		if s.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeStagingRepo) CountByStatus(ctx context.Context, jobID int, status models.StagingStatus) (int, error) {
	all, _ := r.GetByJob(ctx, jobID)
	count := 0
	for _, s := range all {
		if s.Status == status {
			count++
		}
	}
	return count, nil
}

// fakeIssueRepo is an in-memory IssueRepository.
type fakeIssueRepo struct {
	issues  map[int]*models.Issue
	links   map[int]map[int64]bool
	nextID  int
	staging *fakeStagingRepo
}

func newFakeIssueRepo(staging *fakeStagingRepo) *fakeIssueRepo {
	return &fakeIssueRepo{
		issues:  make(map[int]*models.Issue),
		links:   make(map[int]map[int64]bool),
		staging: staging,
	}
}

func (r *fakeIssueRepo) GetOrCreate(ctx context.Context, jobID int, issueType models.IssueType, key string, description *string) (*models.Issue, error) {
	for _, issue := range r.issues {
		if issue.JobID == jobID && issue.Type == issueType && issue.Key == key {
			cp := *issue
			return &cp, nil
		}
	}
	r.nextID++
	issue := &models.Issue{IssueID: r.nextID, JobID: jobID, Type: issueType, Key: key, Description: description}
	r.issues[issue.IssueID] = issue
	r.links[issue.IssueID] = make(map[int64]bool)
	cp := *issue
	return &cp, nil
}

func (r *fakeIssueRepo) LinkStaging(ctx context.Context, issueID int, stagingID int64) error {
	if _, ok := r.links[issueID]; !ok {
		r.links[issueID] = make(map[int64]bool)
	}
	r.links[issueID][stagingID] = true
	return nil
}

func (r *fakeIssueRepo) GetByJob(ctx context.Context, jobID int) ([]*models.Issue, error) {
	var out []*models.Issue
	for i := 1; i <= r.nextID; i++ {
		if issue, ok := r.issues[i]; ok && issue.JobID == jobID {
			cp := *issue
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIssueRepo) GetForStaging(ctx context.Context, stagingID int64) ([]*models.Issue, error) {
	var out []*models.Issue
	for issueID, links := range r.links {
		if links[stagingID] {
			cp := *r.issues[issueID]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIssueRepo) LinkedStagingStatuses(ctx context.Context, issueID int) ([]models.StagingStatus, error) {
	var out []models.StagingStatus
	for stagingID := range r.links[issueID] {
		if s, ok := r.staging.rows[stagingID]; ok {
			out = append(out, s.Status)
		}
	}
	return out, nil
}

func (r *fakeIssueRepo) MarkResolved(ctx context.Context, id int, resolvedBy, comment string) error {
	issue, ok := r.issues[id]
	if !ok {
		return fmt.Errorf("issue %d not found", id)
	}
	now := time.Now().UTC()
	issue.Resolved = true
	issue.ResolvedAt = &now
	issue.ResolvedBy = &resolvedBy
	issue.ResolutionComment = &comment
	return nil
}

func (r *fakeIssueRepo) ClearResolved(ctx context.Context, id int) error {
	issue, ok := r.issues[id]
	if !ok {
		return fmt.Errorf("issue %d not found", id)
	}
	issue.Resolved = false
	issue.ResolvedAt = nil
	issue.ResolvedBy = nil
	issue.ResolutionComment = nil
	return nil
}

func (r *fakeIssueRepo) AutoResolveIfAllStagingResolved(ctx context.Context, issueID int) (bool, error) {
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

// fakeContactRepo is an in-memory ContactRepository.
type fakeContactRepo struct {
	contacts map[string]bool // userID|email -> exists
	nextID   int64
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]bool)}
}

func contactKey(userID, email string) string {
	return userID + "|" + email
}

func (r *fakeContactRepo) ExistingEmails(ctx context.Context, emails []string, userID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, email := range emails {
		if r.contacts[contactKey(userID, email)] {
			out[email] = true
		}
	}
	return out, nil
}

func (r *fakeContactRepo) CreateFromStaging(ctx context.Context, s *models.Staging, userID string) (*models.Contact, error) {
	row := s.Row()
	r.nextID++
	r.contacts[contactKey(userID, row["email"])] = true
	return &models.Contact{
		ContactID: r.nextID,
		StagingID: s.StagingID,
		UserID:    userID,
		Email:     row["email"],
		FirstName: row["first_name"],
		LastName:  row["last_name"],
		Company:   row["company"],
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *fakeContactRepo) BatchCreateFromStaging(ctx context.Context, stagings []*models.Staging, userID string) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, s := range stagings {
		c, err := r.CreateFromStaging(ctx, s, userID)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
