// internal/domain/notification/notification.go
package notification

import "time"

// Status represents where a notification is in its review lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
)

// allowedTransitions encodes the forward-only lifecycle:
// pending may be approved or denied; approved may be sent or failed.
// denied, sent and failed are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusDenied},
	StatusApproved: {StatusSent, StatusFailed},
}

// IsValid reports whether s is one of the known lifecycle statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed out of s.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransitionTo reports whether the edge s -> next is part of the lifecycle.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Notification is the persisted record of one drafted outreach message.
// ID and CreatedAt are set once at creation and never change afterwards;
// Status only moves forward through the lifecycle above.
type Notification struct {
	ID              string
	StudentID       string
	StudentName     string
	MessagingHandle string
	Message         string
	CreatedAt       time.Time
	Status          Status
}

// Draft is the pre-persistence form of a notification, as produced by the
// ingestion run or a manual queue request. The ledger assigns ID, CreatedAt
// and the initial pending status on insert.
type Draft struct {
	StudentID       string
	StudentName     string
	MessagingHandle string
	Message         string
}
