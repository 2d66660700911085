// Package store is the SQLite-backed schedule store adapter: provider
// profiles, schedule documents (stored as one JSON blob per provider/role
// with an optimistic version), the flat unavailable-dates list, and
// appointments.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrProviderNotFound is returned when a provider id has no profile row.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrVersionConflict is returned when a schedule save loses an
	// optimistic version check to a concurrent writer.
	ErrVersionConflict = errors.New("schedule document version conflict")
	// ErrStoreUnavailable wraps driver-level failures so callers can
	// distinguish infrastructure errors from domain rejections.
	ErrStoreUnavailable = errors.New("schedule store unavailable")
)

func wrapStore(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// DB wraps sql.DB for the scheduling service.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path (used by the backup service).
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Providers: doctors and staff bookable for appointments
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Schedule documents: one JSON blob per (provider, role), versioned
		`CREATE TABLE IF NOT EXISTS schedule_documents (
			provider_id TEXT NOT NULL,
			role TEXT NOT NULL,
			document TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (provider_id, role),
			FOREIGN KEY (provider_id) REFERENCES providers(id)
		)`,

		// Flat unavailable-dates list, logically separate from the keyed
		// overrides inside the document
		`CREATE TABLE IF NOT EXISTS unavailable_dates (
			id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL,
			role TEXT NOT NULL,
			date TEXT NOT NULL,
			branch TEXT NOT NULL,
			time_slots TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (provider_id) REFERENCES providers(id)
		)`,

		// Appointments
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL,
			patient_id TEXT,
			branch TEXT,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 30,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (provider_id) REFERENCES providers(id)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_providers_role ON providers(role, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_unavailable_provider_date ON unavailable_dates(provider_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_provider_date ON appointments(provider_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
