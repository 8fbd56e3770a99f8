// internal/domain/conversation/conversation.go
package conversation

import (
	"context"
	"time"
)

// Turn archives the context in which one message was drafted for a student.
// Turns are written after drafting so the next run can feed recent context
// back into the drafter.
type Turn struct {
	StudentID      string
	Week           string
	Timestamp      time.Time
	Context        map[string]float64
	Flags          []string
	DraftedMessage string
	SentMessage    string
}

// Snippet is the condensed form of a turn served back as drafting context.
type Snippet struct {
	Timestamp string
	Week      string
	Flags     string
	Message   string
}

// Store archives conversation turns and serves recent context per student.
// Both operations are best-effort from the pipeline's perspective: callers
// log failures and continue, they never abort a run over this store.
type Store interface {
	Put(ctx context.Context, turn *Turn) error
	// Recent returns up to limit snippets for the student, most recent first.
	Recent(ctx context.Context, studentID string, limit int) ([]Snippet, error)
}
