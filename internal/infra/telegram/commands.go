// internal/infra/telegram/commands.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"student_progress_notifier/internal/app"
	"student_progress_notifier/internal/domain/notification"
)

// RegisterCommandHandlers registers the reviewer's bot commands: /pending
// lists drafts awaiting a decision and /ingest triggers a run on demand.
func RegisterCommandHandlers(ctx context.Context, b *telebot.Bot, ingestor app.Ingestor, ledger *app.LedgerService, publisher *ReviewPublisher, reviewerID int64, baseLogger *logrus.Entry) {
	b.Handle("/pending", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/pending",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != reviewerID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("You are not the configured reviewer.")
		}

		pending, err := ledger.List(ctx, notification.StatusPending)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list pending notifications")
			return c.Send(fmt.Sprintf("Failed to list pending drafts: %s", err.Error()))
		}
		if len(pending) == 0 {
			return c.Send("No drafts are waiting for review.")
		}

		var response strings.Builder
		fmt.Fprintf(&response, "--- Pending drafts (%d) ---\n", len(pending))
		for _, n := range pending {
			fmt.Fprintf(&response, "%s — %s: %s\n", n.ID, n.StudentName, n.Message)
		}
		return c.Send(response.String())
	})

	b.Handle("/ingest", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/ingest",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != reviewerID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("You are not the configured reviewer.")
		}
		handlerLogger.Info("Manual ingestion run requested")

		queued, err := ingestor.Ingest(ctx, "", false)
		if err != nil {
			handlerLogger.WithError(err).Error("Manual ingestion run failed")
			return c.Send(fmt.Sprintf("Ingestion failed: %s", err.Error()))
		}

		published := 0
		for _, n := range queued {
			if n.Status != notification.StatusPending {
				continue
			}
			if err := publisher.Publish(n); err != nil {
				handlerLogger.WithError(err).WithField("notification_id", n.ID).Error("Failed to publish draft for review")
				continue
			}
			published++
		}
		return c.Send(fmt.Sprintf("Ingestion complete: %d queued, %d sent for review.", len(queued), published))
	})
}
