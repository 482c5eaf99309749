package models

import "time"

// Contact is a finalized, user-owned record materialized from a SUCCESS
// staging row. It is created once by consolidation and never mutated by
// this system afterward.
type Contact struct {
	ContactID int64     `json:"contact_id" db:"contact_id"`
	StagingID int64     `json:"staging_id" db:"staging_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Company   string    `json:"company" db:"company"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
