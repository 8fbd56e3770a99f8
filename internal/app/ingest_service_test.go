package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student_progress_notifier/internal/domain/conversation"
	"student_progress_notifier/internal/domain/notification"
	"student_progress_notifier/internal/domain/progress"
	"student_progress_notifier/internal/domain/student"
	idb "student_progress_notifier/internal/infra/database"
)

type fakeSnapshotStore struct {
	perWeek map[string][]*student.Record
	err     error
}

func (f *fakeSnapshotStore) Load(ctx context.Context, source string) (map[string][]*student.Record, error) {
	return f.perWeek, f.err
}

type fakeDrafter struct {
	err    error
	failID string // student whose draft fails; empty fails all when err is set
}

func (f *fakeDrafter) Draft(ctx context.Context, rec *student.Record, flags []string) (string, error) {
	if f.err != nil && (f.failID == "" || f.failID == rec.StudentID) {
		return "", f.err
	}
	return "Draft for " + rec.StudentID, nil
}

type recordingConvStore struct {
	turns []*conversation.Turn
}

func (r *recordingConvStore) Put(ctx context.Context, turn *conversation.Turn) error {
	r.turns = append(r.turns, turn)
	return nil
}

func (r *recordingConvStore) Recent(ctx context.Context, studentID string, limit int) ([]conversation.Snippet, error) {
	return nil, nil
}

func snapshotRecord(id, handle, week string, metrics map[string]float64, lastActive string) *student.Record {
	return &student.Record{
		StudentID:       id,
		StudentName:     "Student " + id,
		MessagingHandle: handle,
		Week:            week,
		Metrics:         metrics,
		LastActiveISO:   lastActive,
	}
}

func newTestIngest(t *testing.T, snapshots *fakeSnapshotStore, drafter *fakeDrafter, convStore conversation.Store) (*IngestService, *LedgerService) {
	t.Helper()
	repo := idb.NewFileNotificationRepository(filepath.Join(t.TempDir(), "notifications.json"))
	ledger := NewLedgerService(repo, discardLogger())
	svc := NewIngestService(snapshots, drafter, convStore, ledger, discardLogger(), progress.DefaultConfig())
	return svc, ledger
}

func TestIngest_FlaggedStudentGetsQueued(t *testing.T) {
	recent := time.Now().Format(time.RFC3339)
	snapshots := &fakeSnapshotStore{perWeek: map[string][]*student.Record{
		"2025-W01": {
			snapshotRecord("A1", "1001", "2025-W01", map[string]float64{"quiz_score": 80}, recent),
			snapshotRecord("B2", "1002", "2025-W01", map[string]float64{"quiz_score": 90}, recent),
		},
		"2025-W02": {
			snapshotRecord("A1", "1001", "2025-W02", map[string]float64{"quiz_score": 72}, recent),
			snapshotRecord("B2", "1002", "2025-W02", map[string]float64{"quiz_score": 91}, recent),
		},
	}}
	svc, ledger := newTestIngest(t, snapshots, &fakeDrafter{}, nil)

	queued, err := svc.Ingest(context.Background(), "", false)

	require.NoError(t, err)
	require.Len(t, queued, 1, "only the dropped student is flagged")
	assert.Equal(t, "A1", queued[0].StudentID)
	assert.Equal(t, notification.StatusPending, queued[0].Status)
	assert.Equal(t, "Draft for A1", queued[0].Message)

	all, err := ledger.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngest_BlankHandleNeverQueued(t *testing.T) {
	snapshots := &fakeSnapshotStore{perWeek: map[string][]*student.Record{
		"2025-W01": {snapshotRecord("A1", "  ", "2025-W01", map[string]float64{"quiz_score": 80}, "")},
	}}
	svc, ledger := newTestIngest(t, snapshots, &fakeDrafter{}, nil)

	queued, err := svc.Ingest(context.Background(), "", true)

	require.NoError(t, err)
	assert.Empty(t, queued)

	all, err := ledger.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIngest_IncludeUnflaggedQueuesEveryone(t *testing.T) {
	recent := time.Now().Format(time.RFC3339)
	snapshots := &fakeSnapshotStore{perWeek: map[string][]*student.Record{
		"2025-W01": {
			snapshotRecord("A1", "1001", "2025-W01", map[string]float64{"quiz_score": 90}, recent),
			snapshotRecord("B2", "1002", "2025-W01", map[string]float64{"quiz_score": 95}, recent),
		},
	}}
	svc, _ := newTestIngest(t, snapshots, &fakeDrafter{}, nil)

	queued, err := svc.Ingest(context.Background(), "", true)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "A1", queued[0].StudentID, "students are processed in ID order")
	assert.Equal(t, "B2", queued[1].StudentID)

	queued, err = svc.Ingest(context.Background(), "", false)
	require.NoError(t, err)
	assert.Empty(t, queued, "healthy students are skipped by default")
}

func TestIngest_DrafterFailureIsolatesOneStudent(t *testing.T) {
	snapshots := &fakeSnapshotStore{perWeek: map[string][]*student.Record{
		"2025-W01": {
			snapshotRecord("A1", "1001", "2025-W01", map[string]float64{"quiz_score": 90}, ""),
			snapshotRecord("B2", "1002", "2025-W01", map[string]float64{"quiz_score": 95}, ""),
		},
	}}
	drafter := &fakeDrafter{err: errors.New("agent unreachable"), failID: "A1"}
	svc, _ := newTestIngest(t, snapshots, drafter, nil)

	queued, err := svc.Ingest(context.Background(), "", false)

	require.NoError(t, err, "a per-student drafting failure never aborts the run")
	require.Len(t, queued, 1)
	assert.Equal(t, "B2", queued[0].StudentID)
}

func TestIngest_EmptySnapshots(t *testing.T) {
	svc, _ := newTestIngest(t, &fakeSnapshotStore{perWeek: map[string][]*student.Record{}}, &fakeDrafter{}, nil)

	queued, err := svc.Ingest(context.Background(), "", false)

	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestIngest_SnapshotLoadErrorAbortsRun(t *testing.T) {
	loadErr := errors.New("permission denied")
	svc, _ := newTestIngest(t, &fakeSnapshotStore{err: loadErr}, &fakeDrafter{}, nil)

	_, err := svc.Ingest(context.Background(), "", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, loadErr))
}

func TestIngest_SecondRunDedupsSameDay(t *testing.T) {
	snapshots := &fakeSnapshotStore{perWeek: map[string][]*student.Record{
		"2025-W01": {snapshotRecord("A1", "1001", "2025-W01", map[string]float64{"quiz_score": 90}, "")},
	}}
	svc, ledger := newTestIngest(t, snapshots, &fakeDrafter{}, nil)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Ingest(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "re-ingesting the same snapshots resolves to the existing draft")

	all, err := ledger.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIngest_ArchivesConversationTurn(t *testing.T) {
	snapshots := &fakeSnapshotStore{perWeek: map[string][]*student.Record{
		"2025-W01": {snapshotRecord("A1", "1001", "2025-W01", map[string]float64{"quiz_score": 90}, "")},
	}}
	convStore := &recordingConvStore{}
	svc, _ := newTestIngest(t, snapshots, &fakeDrafter{}, convStore)

	_, err := svc.Ingest(context.Background(), "", false)

	require.NoError(t, err)
	require.Len(t, convStore.turns, 1)
	turn := convStore.turns[0]
	assert.Equal(t, "A1", turn.StudentID)
	assert.Equal(t, "2025-W01", turn.Week)
	assert.Equal(t, []string{progress.FlagNoLastActive}, turn.Flags)
	assert.Equal(t, "Draft for A1", turn.DraftedMessage)
}
