package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rohit/contact-ingest-worker/internal/domain/models"
	"github.com/rs/zerolog"
)

// ContactRepository implements repository.ContactRepository for PostgreSQL.
type ContactRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db *DB, logger zerolog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

// ExistingEmails returns the subset of emails for which a contact already
// exists for this user — (user_id, email) is the effective domain (I8),
// never a global email lookup.
func (r *ContactRepository) ExistingEmails(ctx context.Context, emails []string, userID string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(emails) == 0 {
		return result, nil
	}

	var found []string
	query := `SELECT email FROM contacts WHERE user_id = $1 AND email = ANY($2)`
	if err := r.db.SelectContext(ctx, &found, query, userID, pq.Array(emails)); err != nil {
		return nil, err
	}

	for _, email := range found {
		result[email] = true
	}
	return result, nil
}

// CreateFromStaging materializes a Contact from a staging row. It requires
// all four staging fields and the user ID to be non-empty, matching the
// reference repository's guard (I4 uniqueness is enforced by the
// contacts.staging_id unique constraint).
func (r *ContactRepository) CreateFromStaging(ctx context.Context, s *models.Staging, userID string) (*models.Contact, error) {
	row := s.Row()
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("staging %d: user_id is required to create a contact", s.StagingID)
	}
	for _, field := range []string{"email", "first_name", "last_name", "company"} {
		if strings.TrimSpace(row[field]) == "" {
			return nil, fmt.Errorf("staging %d: %s is required to create a contact", s.StagingID, field)
		}
	}

	contact := &models.Contact{
		StagingID: s.StagingID,
		UserID:    userID,
		Email:     row["email"],
		FirstName: row["first_name"],
		LastName:  row["last_name"],
		Company:   row["company"],
	}

	query := `
		INSERT INTO contacts (staging_id, user_id, email, first_name, last_name, company)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING contact_id, created_at
	`
	row2 := r.db.QueryRowxContext(ctx, query, contact.StagingID, contact.UserID, contact.Email, contact.FirstName, contact.LastName, contact.Company)
	if err := row2.Scan(&contact.ContactID, &contact.CreatedAt); err != nil {
		return nil, err
	}
	return contact, nil
}

// BatchCreateFromStaging is a best-effort loop: staging rows that fail the
// non-empty check are skipped and logged rather than aborting the batch.
func (r *ContactRepository) BatchCreateFromStaging(ctx context.Context, stagings []*models.Staging, userID string) ([]*models.Contact, error) {
	contacts := make([]*models.Contact, 0, len(stagings))
	for _, s := range stagings {
		contact, err := r.CreateFromStaging(ctx, s, userID)
		if err != nil {
			r.logger.Warn().Err(err).Int64("staging_id", s.StagingID).Msg("skipping staging row during contact consolidation")
			continue
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}
