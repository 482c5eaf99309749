// Package validation implements the pure, database-free row validator: a
// function of a row plus two pre-computed sets to a pass/fail verdict.
package validation

import (
	"regexp"
	"strings"

	ingesterrors "github.com/rohit/contact-ingest-worker/internal/domain/errors"
	"github.com/rohit/contact-ingest-worker/internal/domain/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var requiredFields = []string{"email", "first_name", "last_name", "company"}

// Result is the outcome of validating a single row. Err is nil when Valid
// is true; otherwise it carries the same RowNumber/Code/Message an Issue +
// IssueItem pair is built from.
type Result struct {
	Valid bool
	Type  models.IssueType
	Err   *ingesterrors.ValidationError
}

// Message is a convenience accessor over Err for callers that only need
// the human-readable reason, not the full ValidationError.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}

// NormalizeEmail lowercases and trims an email address for use as a
// duplicate/existence lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks a single row against the required-field, email-format,
// CSV-duplicate, and existing-contact rules, in that order, first failure
// wins. rowNumber identifies the row for the resulting ValidationError (the
// 1-based CSV row on initial ingestion, or the staging row ID on
// reprocess). duplicateEmails and existingEmails are normalized-email sets
// computed once per batch by the processor; the validator never touches
// the database itself.
func Validate(rowNumber int, row map[string]string, duplicateEmails, existingEmails map[string]bool) Result {
	for _, field := range requiredFields {
		if strings.TrimSpace(row[field]) == "" {
			issueType := models.IssueTypeMissingRequiredField
			msg := "Missing required field: " + field
			return Result{
				Type: issueType,
				Err:  ingesterrors.NewValidationError(rowNumber, string(issueType), msg),
			}
		}
	}

	email := strings.TrimSpace(row["email"])
	if !emailRegex.MatchString(email) {
		issueType := models.IssueTypeInvalidEmail
		msg := "Invalid email format: " + email
		return Result{
			Type: issueType,
			Err:  ingesterrors.NewValidationError(rowNumber, string(issueType), msg),
		}
	}

	normalized := NormalizeEmail(email)

	if duplicateEmails[normalized] {
		issueType := models.IssueTypeDuplicateEmail
		msg := "Duplicate email in CSV: " + email
		return Result{
			Type: issueType,
			Err:  ingesterrors.NewValidationError(rowNumber, string(issueType), msg),
		}
	}

	if existingEmails[normalized] {
		issueType := models.IssueTypeExistingEmail
		msg := "Email already exists in contacts: " + email
		return Result{
			Type: issueType,
			Err:  ingesterrors.NewValidationError(rowNumber, string(issueType), msg),
		}
	}

	return Result{Valid: true}
}

// DuplicateEmails groups a batch of rows by normalized email and returns
// the subset appearing more than once. Rows with an empty (post-trim)
// email do not participate.
func DuplicateEmails(rows []map[string]string) map[string]bool {
	counts := make(map[string]int)
	for _, row := range rows {
		normalized := NormalizeEmail(row["email"])
		if normalized == "" {
			continue
		}
		counts[normalized]++
	}

	duplicates := make(map[string]bool)
	for email, count := range counts {
		if count > 1 {
			duplicates[email] = true
		}
	}
	return duplicates
}
