// internal/domain/notification/errors.go
package notification

import "fmt"

// InvalidTransitionError reports an attempt to move a notification along an
// edge that is not part of the lifecycle, identifying both the current and
// the requested status.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}
