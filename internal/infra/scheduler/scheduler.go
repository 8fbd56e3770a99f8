package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/app"
	"student_progress_notifier/internal/domain/notification"
)

// Publisher pushes a freshly queued notification to the review surface.
// A nil publisher means runs queue silently and reviewers use the API.
type Publisher interface {
	Publish(n *notification.Notification) error
}

// IngestScheduler triggers ingestion runs on a cron spec, so snapshots
// dropped into the data directory get picked up without a manual API call.
type IngestScheduler struct {
	cronEngine       *cron.Cron
	ingestor         app.Ingestor
	publisher        Publisher
	logger           *logrus.Entry
	cronSpecIngest   string
	snapshotSource   string
	includeUnflagged bool
}

func NewIngestScheduler(
	ingestor app.Ingestor,
	publisher Publisher,
	logger *logrus.Entry,
	cronSpecIngest string,
	snapshotSource string,
	includeUnflagged bool,
) *IngestScheduler {
	return &IngestScheduler{
		cronEngine:       cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		ingestor:         ingestor,
		publisher:        publisher,
		logger:           logger,
		cronSpecIngest:   cronSpecIngest,
		snapshotSource:   snapshotSource,
		includeUnflagged: includeUnflagged,
	}
}

func (s *IngestScheduler) Start() {
	s.logger.Info("Starting ingest scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecIngest, func() {
		s.logger.Info("Cron job triggered for scheduled ingestion run")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.runIngestion(ctx)
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add ingestion cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Ingest scheduler started")
}

func (s *IngestScheduler) runIngestion(ctx context.Context) {
	queued, err := s.ingestor.Ingest(ctx, s.snapshotSource, s.includeUnflagged)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled ingestion run failed")
		return
	}
	s.logger.WithField("queued", len(queued)).Info("Scheduled ingestion run complete")

	if s.publisher == nil {
		return
	}
	for _, n := range queued {
		// Dedup can resolve to an already-reviewed notification; only fresh
		// pending drafts go to the reviewer.
		if n.Status != notification.StatusPending {
			continue
		}
		if err := s.publisher.Publish(n); err != nil {
			s.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to publish draft for review")
		}
	}
}

func (s *IngestScheduler) Stop() {
	s.logger.Info("Stopping ingest scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Ingest scheduler gracefully stopped")
}
