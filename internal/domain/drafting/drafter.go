// internal/domain/drafting/drafter.go
package drafting

import (
	"context"

	"student_progress_notifier/internal/domain/student"
)

// Drafter produces the outreach message for one student. Implementations are
// expected to fall back to a deterministic template internally rather than
// fail, so a returned error is the exception; callers still isolate it
// per student instead of aborting a run.
type Drafter interface {
	Draft(ctx context.Context, rec *student.Record, flags []string) (string, error)
}
