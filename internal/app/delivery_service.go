// internal/app/delivery_service.go
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/domain/delivery"
	"student_progress_notifier/internal/domain/notification"
)

// DeliveryService sends an approved notification to its student and records
// the outcome as the terminal sent or failed status.
type DeliveryService struct {
	ledger *LedgerService
	client delivery.Client
	logger *logrus.Entry
}

func NewDeliveryService(ledger *LedgerService, client delivery.Client, logger *logrus.Entry) *DeliveryService {
	return &DeliveryService{
		ledger: ledger,
		client: client,
		logger: logger,
	}
}

// Deliver sends the message of an approved notification to its messaging
// handle. On send failure the notification is marked failed and the send
// error is returned alongside the updated record. Delivery of a notification
// that is not approved fails with *notification.InvalidTransitionError
// without touching the delivery surface.
func (s *DeliveryService) Deliver(ctx context.Context, id string) (*notification.Notification, error) {
	n, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != notification.StatusApproved {
		return nil, &notification.InvalidTransitionError{From: n.Status, To: notification.StatusSent}
	}

	if sendErr := s.client.Send(ctx, n.MessagingHandle, n.Message); sendErr != nil {
		s.logger.WithError(sendErr).WithFields(logrus.Fields{
			"notification_id": id,
			"student_id":      n.StudentID,
		}).Error("Delivery failed, marking notification failed")
		failed, err := s.ledger.Transition(ctx, id, notification.StatusFailed)
		if err != nil {
			return nil, fmt.Errorf("failed to mark notification failed after send error: %w", err)
		}
		return failed, fmt.Errorf("failed to send message: %w", sendErr)
	}

	return s.ledger.Transition(ctx, id, notification.StatusSent)
}
