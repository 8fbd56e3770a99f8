// internal/app/ledger_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/domain/notification"
)

// LedgerService owns the persisted notification collection: it applies the
// dedup rule on insert and validates the status state machine on transitions.
// It is the single writer of notification status.
//
// Every mutating operation is a read-modify-write over the repository; mu is
// the serialization point that keeps concurrent inserts and transitions from
// interleaving their read and write halves and losing updates.
type LedgerService struct {
	repo   notification.Repository
	logger *logrus.Entry
	mu     sync.Mutex
	now    func() time.Time
}

func NewLedgerService(repo notification.Repository, logger *logrus.Entry) *LedgerService {
	return &LedgerService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Insert applies the dedup rule and creates a new pending notification when
// no duplicate exists. A duplicate is an existing notification for the same
// student with the same trimmed message content, status pending or approved,
// created on the same local calendar day; in that case the existing record is
// returned unchanged. Message equality is exact string equality post-trim.
func (s *LedgerService) Insert(ctx context.Context, draft notification.Draft) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for dedup: %w", err)
	}

	now := s.now()
	trimmed := strings.TrimSpace(draft.Message)
	for _, n := range existing {
		if n.StudentID == draft.StudentID &&
			strings.TrimSpace(n.Message) == trimmed &&
			(n.Status == notification.StatusPending || n.Status == notification.StatusApproved) &&
			sameCalendarDay(n.CreatedAt, now) {
			s.logger.WithFields(logrus.Fields{
				"student_id":      draft.StudentID,
				"notification_id": n.ID,
			}).Info("Duplicate draft suppressed, returning existing notification")
			return n, nil
		}
	}

	n := &notification.Notification{
		ID:              uuid.NewString(),
		StudentID:       draft.StudentID,
		StudentName:     draft.StudentName,
		MessagingHandle: draft.MessagingHandle,
		Message:         draft.Message,
		CreatedAt:       now,
		Status:          notification.StatusPending,
	}
	if err := s.repo.Add(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to add notification: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"student_id":      n.StudentID,
		"notification_id": n.ID,
	}).Info("Notification queued")
	return n, nil
}

// Transition moves a notification along one edge of the lifecycle. It fails
// with the database package's ErrNotificationNotFound when id is unknown and
// with *notification.InvalidTransitionError when the edge is not allowed.
func (s *LedgerService) Transition(ctx context.Context, id string, next notification.Status) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.Status.CanTransitionTo(next) {
		return nil, &notification.InvalidTransitionError{From: n.Status, To: next}
	}

	n.Status = next
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to update notification %s: %w", id, err)
	}
	s.logger.WithFields(logrus.Fields{
		"notification_id": id,
		"status":          next,
	}).Info("Notification status updated")
	return n, nil
}

// EditMessage replaces the message text of a notification, leaving every
// other field untouched. Edits are allowed in any status: a reviewer may
// touch up a message after approval but before delivery.
func (s *LedgerService) EditMessage(ctx context.Context, id string, message string) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Message = message
	if err := s.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to update notification %s: %w", id, err)
	}
	return n, nil
}

// Get returns one notification by id.
func (s *LedgerService) Get(ctx context.Context, id string) (*notification.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all notifications in insertion order, optionally filtered by
// exact status match. An empty statusFilter returns everything.
func (s *LedgerService) List(ctx context.Context, statusFilter notification.Status) ([]*notification.Notification, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if statusFilter == "" {
		return all, nil
	}
	filtered := make([]*notification.Notification, 0, len(all))
	for _, n := range all {
		if n.Status == statusFilter {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

// sameCalendarDay compares the date components of two timestamps in the
// process's local time zone, the ledger's reference zone for dedup.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
