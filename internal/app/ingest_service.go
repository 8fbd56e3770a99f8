// internal/app/ingest_service.go
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/domain/conversation"
	"student_progress_notifier/internal/domain/drafting"
	"student_progress_notifier/internal/domain/notification"
	"student_progress_notifier/internal/domain/progress"
	"student_progress_notifier/internal/domain/student"
)

// Ingestor runs one ingestion pass: snapshots in, queued notifications out.
type Ingestor interface {
	// Ingest loads all weekly snapshots from source, evaluates deltas and
	// flags over the bounded recent window, drafts a message per eligible
	// student and inserts it through the ledger. includeUnflagged drafts for
	// every student with a contact handle, not just flagged ones.
	Ingest(ctx context.Context, source string, includeUnflagged bool) ([]*notification.Notification, error)
}

// deltaWindowWeeks bounds delta and flag computation to the most recent
// weeks. Older weeks are still loaded but intentionally excluded from trend
// rules: a deliberate bounded-lookback policy.
const deltaWindowWeeks = 3

// IngestService wires the pipeline end to end for a single run:
// snapshot store -> delta engine -> flag engine -> history aggregator ->
// drafter -> ledger. Control flow is strictly one-directional; no stage
// re-enters an earlier one within a run.
type IngestService struct {
	snapshots student.SnapshotStore
	drafter   drafting.Drafter
	convStore conversation.Store // may be nil
	ledger    *LedgerService
	logger    *logrus.Entry
	flagCfg   progress.Config
	now       func() time.Time
}

func NewIngestService(
	snapshots student.SnapshotStore,
	drafter drafting.Drafter,
	convStore conversation.Store,
	ledger *LedgerService,
	logger *logrus.Entry,
	flagCfg progress.Config,
) *IngestService {
	return &IngestService{
		snapshots: snapshots,
		drafter:   drafter,
		convStore: convStore,
		ledger:    ledger,
		logger:    logger,
		flagCfg:   flagCfg,
		now:       time.Now,
	}
}

// Ingest implements Ingestor. Snapshot load errors abort the whole run;
// per-student drafting, archiving and insert failures are logged and
// isolated so siblings still go through. The returned slice holds the newly
// inserted or dedup-resolved notifications in student-ID order, which is the
// documented deterministic processing order.
func (s *IngestService) Ingest(ctx context.Context, source string, includeUnflagged bool) ([]*notification.Notification, error) {
	perWeek, err := s.snapshots.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	if len(perWeek) == 0 {
		s.logger.Info("No weekly snapshots available, nothing to process")
		return []*notification.Notification{}, nil
	}

	latest := student.LatestByStudent(perWeek)
	window := progress.LastNWeeks(perWeek, deltaWindowWeeks)

	deltas := progress.ComputeDeltas(window)
	flags := progress.DecideFlags(latest, deltas, s.now(), s.flagCfg)
	progress.AttachHistory(ctx, latest, window, progress.DefaultHistoryWindow, s.convStore, s.logger)

	s.logger.WithFields(logrus.Fields{
		"weeks":            len(perWeek),
		"students":         len(latest),
		"flagged_students": len(flags),
	}).Info("Snapshot evaluation complete")

	studentIDs := make([]string, 0, len(latest))
	for id := range latest {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	queued := make([]*notification.Notification, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		rec := latest[studentID]

		// No notification is ever created without a contact handle.
		if strings.TrimSpace(rec.MessagingHandle) == "" {
			continue
		}
		studentFlags := flags[studentID]
		if len(studentFlags) == 0 && !includeUnflagged {
			continue
		}

		message, err := s.drafter.Draft(ctx, rec, studentFlags)
		if err != nil {
			s.logger.WithError(err).WithField("student_id", studentID).Error("Drafting failed, skipping student")
			continue
		}

		s.archiveTurn(ctx, rec, studentFlags, message)

		n, err := s.ledger.Insert(ctx, notification.Draft{
			StudentID:       rec.StudentID,
			StudentName:     rec.StudentName,
			MessagingHandle: rec.MessagingHandle,
			Message:         message,
		})
		if err != nil {
			s.logger.WithError(err).WithField("student_id", studentID).Error("Failed to queue notification, skipping student")
			continue
		}
		queued = append(queued, n)
	}

	s.logger.WithField("queued", len(queued)).Info("Ingestion run complete")
	return queued, nil
}

// archiveTurn persists the drafting context for the next run, best-effort.
func (s *IngestService) archiveTurn(ctx context.Context, rec *student.Record, flags []string, message string) {
	if s.convStore == nil {
		return
	}
	turn := &conversation.Turn{
		StudentID:      rec.StudentID,
		Week:           rec.Week,
		Timestamp:      s.now(),
		Context:        rec.Metrics,
		Flags:          flags,
		DraftedMessage: message,
	}
	if err := s.convStore.Put(ctx, turn); err != nil {
		s.logger.WithError(err).WithField("student_id", rec.StudentID).Warn("Failed to archive conversation turn, continuing")
	}
}
