package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rohit/contact-ingest-worker/internal/config"
)

// DB wraps sqlx.DB with additional functionality.
type DB struct {
	*sqlx.DB
}

// NewConnection creates a new database connection and applies the schema.
func NewConnection(cfg config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapped := &DB{DB: db}
	if err := wrapped.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return wrapped, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return db.BeginTxx(ctx, nil)
}

// GetStats returns database connection statistics.
func (db *DB) GetStats() DBStats {
	stats := db.DB.Stats()
	return DBStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}

// DBStats holds database statistics.
type DBStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// schema is the forward-only migration for the five tables. There is no
// external migration runner here: the schema is small, fully owned by
// this worker, and applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id             SERIAL PRIMARY KEY,
	user_id            TEXT NOT NULL,
	original_filename  TEXT NOT NULL,
	object_key         TEXT NOT NULL,
	status             TEXT NOT NULL,
	total_rows         INTEGER NOT NULL DEFAULT 0,
	processed_rows     INTEGER NOT NULL DEFAULT 0,
	issue_count        INTEGER NOT NULL DEFAULT 0,
	process_start      TIMESTAMPTZ,
	process_end        TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS staging (
	staging_id  BIGSERIAL PRIMARY KEY,
	job_id      INTEGER NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
	email       TEXT,
	first_name  TEXT,
	last_name   TEXT,
	company     TEXT,
	status      TEXT NOT NULL,
	row_hash    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, row_hash)
);

CREATE TABLE IF NOT EXISTS issues (
	issue_id           SERIAL PRIMARY KEY,
	job_id             INTEGER NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
	type               TEXT NOT NULL,
	key                TEXT NOT NULL,
	resolved           BOOLEAN NOT NULL DEFAULT false,
	description        TEXT,
	resolved_at        TIMESTAMPTZ,
	resolved_by        TEXT,
	resolution_comment TEXT,
	UNIQUE (job_id, type, key)
);

CREATE TABLE IF NOT EXISTS issue_items (
	issue_item_id  BIGSERIAL PRIMARY KEY,
	issue_id       INTEGER NOT NULL REFERENCES issues(issue_id) ON DELETE CASCADE,
	staging_id     BIGINT NOT NULL REFERENCES staging(staging_id) ON DELETE CASCADE,
	UNIQUE (issue_id, staging_id)
);

CREATE TABLE IF NOT EXISTS contacts (
	contact_id  BIGSERIAL PRIMARY KEY,
	staging_id  BIGINT NOT NULL UNIQUE REFERENCES staging(staging_id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL,
	email       TEXT NOT NULL,
	first_name  TEXT NOT NULL,
	last_name   TEXT NOT NULL,
	company     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_user_email ON contacts (user_id, email);
CREATE INDEX IF NOT EXISTS idx_staging_job_id ON staging (job_id);
CREATE INDEX IF NOT EXISTS idx_issue_items_staging_id ON issue_items (staging_id);
`

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
