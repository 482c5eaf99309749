package models

import "time"

// JobStatus is the explicit state machine type for Job.status. Transitions
// are validated at the data-access layer, not scattered across callers.
type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusNeedsReview JobStatus = "NEEDS_REVIEW"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusFailed      JobStatus = "FAILED"
)

// jobTransitions enumerates the legal Job.status edges. Anything not listed
// here is rejected by JobStatus.CanTransitionTo.
var jobTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {
		JobStatusProcessing: true,
		JobStatusFailed:     true,
	},
	JobStatusProcessing: {
		JobStatusNeedsReview: true,
		JobStatusCompleted:   true,
		JobStatusFailed:      true,
	},
	JobStatusNeedsReview: {
		JobStatusProcessing: true,
		JobStatusFailed:     true,
	},
	JobStatusCompleted: {},
	JobStatusFailed: {
		JobStatusProcessing: true,
	},
}

// CanTransitionTo reports whether moving from s to next is a legal Job
// lifecycle edge.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return jobTransitions[s][next]
}

// Job is one CSV ingestion request owned by a user.
type Job struct {
	JobID            int        `json:"job_id" db:"job_id"`
	UserID           string     `json:"user_id" db:"user_id"`
	OriginalFilename string     `json:"original_filename" db:"original_filename"`
	ObjectKey        string     `json:"object_key" db:"object_key"`
	Status           JobStatus  `json:"status" db:"status"`
	TotalRows        int        `json:"total_rows" db:"total_rows"`
	ProcessedRows    int        `json:"processed_rows" db:"processed_rows"`
	IssueCount       int        `json:"issue_count" db:"issue_count"`
	ProcessStart     *time.Time `json:"process_start,omitempty" db:"process_start"`
	ProcessEnd       *time.Time `json:"process_end,omitempty" db:"process_end"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}
