// internal/infra/database/postgres_conversation_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // For pq.Array

	"student_progress_notifier/internal/domain/conversation"
)

// PostgresConversationRepository archives conversation turns keyed by
// (student_id, ts). It backs the best-effort drafting-context store; callers
// treat its failures as degraded context, never as fatal.
type PostgresConversationRepository struct {
	db *sql.DB
}

func NewPostgresConversationRepository(db *sql.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Put(ctx context.Context, turn *conversation.Turn) error {
	contextJSON, err := json.Marshal(turn.Context)
	if err != nil {
		return fmt.Errorf("error encoding turn context: %w", err)
	}

	query := `INSERT INTO conversation_turns (student_id, ts, week, context, flags, drafted_message, sent_message)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               ON CONFLICT (student_id, ts) DO NOTHING`
	_, err = r.db.ExecContext(ctx, query,
		turn.StudentID, turn.Timestamp, turn.Week, string(contextJSON),
		pq.Array(turn.Flags), turn.DraftedMessage, turn.SentMessage,
	)
	if err != nil {
		return fmt.Errorf("error inserting conversation turn: %w", err)
	}
	return nil
}

func (r *PostgresConversationRepository) Recent(ctx context.Context, studentID string, limit int) ([]conversation.Snippet, error) {
	query := `SELECT ts, COALESCE(week, ''), flags, COALESCE(drafted_message, ''), COALESCE(sent_message, '')
               FROM conversation_turns
               WHERE student_id = $1
               ORDER BY ts DESC
               LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying conversation turns: %w", err)
	}
	defer rows.Close()

	snippets := make([]conversation.Snippet, 0, limit)
	for rows.Next() {
		var (
			ts      time.Time
			week    string
			flags   []string
			drafted string
			sent    string
		)
		if err := rows.Scan(&ts, &week, pq.Array(&flags), &drafted, &sent); err != nil {
			return nil, fmt.Errorf("error scanning conversation turn row: %w", err)
		}
		message := drafted
		if message == "" {
			message = sent
		}
		snippets = append(snippets, conversation.Snippet{
			Timestamp: ts.Format(time.RFC3339),
			Week:      week,
			Flags:     strings.Join(flags, ","),
			Message:   message,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation turn rows: %w", err)
	}
	return snippets, nil
}
