// internal/infra/telegram/review_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"student_progress_notifier/internal/app"
	"student_progress_notifier/internal/domain/notification"
	idb "student_progress_notifier/internal/infra/database"
)

// ReviewPublisher pushes a queued draft to the reviewer with inline
// Approve/Deny buttons. Callback data carries the notification id.
type ReviewPublisher struct {
	bot        *telebot.Bot
	reviewerID int64
	logger     *logrus.Entry
}

func NewReviewPublisher(b *telebot.Bot, reviewerID int64, logger *logrus.Entry) *ReviewPublisher {
	return &ReviewPublisher{bot: b, reviewerID: reviewerID, logger: logger}
}

func (p *ReviewPublisher) Publish(n *notification.Notification) error {
	text := fmt.Sprintf("Draft for %s (student %s):\n\n%s", n.StudentName, n.StudentID, n.Message)

	replyMarkup := &telebot.ReplyMarkup{}
	btnApprove := replyMarkup.Data("Approve", fmt.Sprintf("appr_%s", n.ID))
	btnDeny := replyMarkup.Data("Deny", fmt.Sprintf("deny_%s", n.ID))
	replyMarkup.Inline(replyMarkup.Row(btnApprove, btnDeny))

	recipient := &telebot.User{ID: p.reviewerID}
	_, err := p.bot.Send(recipient, text, &telebot.SendOptions{ReplyMarkup: replyMarkup})
	if err != nil {
		return fmt.Errorf("failed to publish draft %s for review: %w", n.ID, err)
	}
	p.logger.WithField("notification_id", n.ID).Info("Draft published for review")
	return nil
}

// RegisterReviewHandlers wires the Approve/Deny callbacks. Approve moves the
// notification to approved and immediately attempts delivery to the student,
// landing it in sent or failed; Deny moves it to denied. Stale or replayed
// button presses surface the ledger's error text instead of mutating state.
func RegisterReviewHandlers(ctx context.Context, b *telebot.Bot, ledger *app.LedgerService, deliverySvc *app.DeliveryService, reviewerID int64, baseLogger *logrus.Entry) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "review_callback",
			"sender_id": c.Sender().ID,
		})

		if c.Sender().ID != reviewerID {
			handlerLogger.Warn("Callback from non-reviewer ignored")
			return c.Respond(&telebot.CallbackResponse{Text: "You are not the configured reviewer."})
		}

		switch {
		case strings.HasPrefix(data, "appr_"):
			id := strings.TrimPrefix(data, "appr_")
			handlerLogger = handlerLogger.WithField("notification_id", id)

			if _, err := ledger.Transition(ctx, id, notification.StatusApproved); err != nil {
				return respondTransitionError(c, handlerLogger, err)
			}
			delivered, err := deliverySvc.Deliver(ctx, id)
			if err != nil {
				handlerLogger.WithError(err).Error("Delivery after approval failed")
				return c.Respond(&telebot.CallbackResponse{Text: "Approved, but delivery failed."})
			}
			handlerLogger.WithField("status", delivered.Status).Info("Draft approved and delivered")
			return c.Respond(&telebot.CallbackResponse{Text: "Approved and sent."})

		case strings.HasPrefix(data, "deny_"):
			id := strings.TrimPrefix(data, "deny_")
			handlerLogger = handlerLogger.WithField("notification_id", id)

			if _, err := ledger.Transition(ctx, id, notification.StatusDenied); err != nil {
				return respondTransitionError(c, handlerLogger, err)
			}
			handlerLogger.Info("Draft denied")
			return c.Respond(&telebot.CallbackResponse{Text: "Denied."})
		}

		handlerLogger.WithField("data", data).Warn("Unhandled callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
	})
}

func respondTransitionError(c telebot.Context, logger *logrus.Entry, err error) error {
	var invalid *notification.InvalidTransitionError
	switch {
	case errors.Is(err, idb.ErrNotificationNotFound):
		logger.Warn("Callback references unknown notification, possibly stale")
		return c.Respond(&telebot.CallbackResponse{Text: "Notification not found."})
	case errors.As(err, &invalid):
		logger.WithError(err).Warn("Transition rejected")
		return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Already %s.", invalid.From)})
	default:
		logger.WithError(err).Error("Transition failed")
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong."})
	}
}
