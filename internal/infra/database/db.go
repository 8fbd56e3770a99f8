package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the notifier tables when they do not exist yet, so a
// fresh deployment needs no separate migration step.
func EnsureSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
            position         BIGSERIAL PRIMARY KEY,
            id               TEXT NOT NULL UNIQUE,
            student_id       TEXT NOT NULL,
            student_name     TEXT NOT NULL,
            messaging_handle TEXT NOT NULL,
            message          TEXT NOT NULL,
            created_at       TIMESTAMPTZ NOT NULL,
            status           TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
            student_id      TEXT NOT NULL,
            ts              TIMESTAMPTZ NOT NULL,
            week            TEXT,
            context         TEXT,
            flags           TEXT[],
            drafted_message TEXT,
            sent_message    TEXT,
            PRIMARY KEY (student_id, ts)
        )`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
