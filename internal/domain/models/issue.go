package models

import "time"

// IssueType classifies a reviewable defect found in a staging row.
type IssueType string

const (
	IssueTypeDuplicateEmail       IssueType = "DUPLICATE_EMAIL"
	IssueTypeInvalidEmail         IssueType = "INVALID_EMAIL"
	IssueTypeExistingEmail        IssueType = "EXISTING_EMAIL"
	IssueTypeMissingRequiredField IssueType = "MISSING_REQUIRED_FIELD"
)

// Issue is a reviewable defect class within a job, grouped by (type, key).
// It may link many staging rows via IssueItem.
type Issue struct {
	IssueID            int        `json:"issue_id" db:"issue_id"`
	JobID              int        `json:"job_id" db:"job_id"`
	Type               IssueType  `json:"type" db:"type"`
	Key                string     `json:"key" db:"key"`
	Resolved           bool       `json:"resolved" db:"resolved"`
	Description        *string    `json:"description,omitempty" db:"description"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy         *string    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionComment  *string    `json:"resolution_comment,omitempty" db:"resolution_comment"`
}

// IssueItem is a staging <-> issue association.
type IssueItem struct {
	IssueItemID int64 `json:"issue_item_id" db:"issue_item_id"`
	IssueID     int   `json:"issue_id" db:"issue_id"`
	StagingID   int64 `json:"staging_id" db:"staging_id"`
}

// SystemResolver is the fixed resolvedBy value written by auto-resolution.
const SystemResolver = "system"

// AutoResolutionComment is the fixed comment written by auto-resolution.
const AutoResolutionComment = "All related staging records resolved during reprocessing"
