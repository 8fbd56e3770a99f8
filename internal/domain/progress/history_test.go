package progress

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student_progress_notifier/internal/domain/conversation"
	"student_progress_notifier/internal/domain/student"
)

type stubConvStore struct {
	snippets map[string][]conversation.Snippet
	err      error
}

func (s *stubConvStore) Put(ctx context.Context, turn *conversation.Turn) error { return nil }

func (s *stubConvStore) Recent(ctx context.Context, studentID string, limit int) ([]conversation.Snippet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snippets[studentID], nil
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestAttachHistory_WindowAndOrdering(t *testing.T) {
	perWeek := map[string][]*student.Record{
		"2025-W01": week(rec("A1", "2025-W01", map[string]float64{"quiz_score": 95})),
		"2025-W02": week(rec("A1", "2025-W02", map[string]float64{"quiz_score": 90})),
		"2025-W03": week(rec("A1", "2025-W03", map[string]float64{"quiz_score": 80})),
		"2025-W04": week(rec("A1", "2025-W04", map[string]float64{"quiz_score": 72})),
	}
	latest := map[string]*student.Record{"A1": perWeek["2025-W04"][0]}

	AttachHistory(context.Background(), latest, perWeek, 3, nil, nil)

	points := latest["A1"].MetricsHistory["quiz_score"]
	require.Len(t, points, 3, "only the trailing window is attached")
	assert.Equal(t, student.HistoryPoint{Week: "2025-W02", Value: 90}, points[0])
	assert.Equal(t, student.HistoryPoint{Week: "2025-W03", Value: 80}, points[1])
	assert.Equal(t, student.HistoryPoint{Week: "2025-W04", Value: 72}, points[2])
}

func TestAttachHistory_GapsAreSkippedNotFilled(t *testing.T) {
	perWeek := map[string][]*student.Record{
		"2025-W01": week(rec("A1", "2025-W01", map[string]float64{"quiz_score": 90})),
		"2025-W02": week(rec("B2", "2025-W02", map[string]float64{"quiz_score": 70})),
		"2025-W03": week(rec("A1", "2025-W03", map[string]float64{"quiz_score": 80})),
	}
	latest := map[string]*student.Record{"A1": perWeek["2025-W03"][0]}

	AttachHistory(context.Background(), latest, perWeek, 3, nil, nil)

	points := latest["A1"].MetricsHistory["quiz_score"]
	require.Len(t, points, 2)
	assert.Equal(t, "2025-W01", points[0].Week)
	assert.Equal(t, "2025-W03", points[1].Week)
}

func TestAttachHistory_NoObservationsKeepsNilHistory(t *testing.T) {
	perWeek := map[string][]*student.Record{
		"2025-W01": week(rec("A1", "2025-W01", map[string]float64{})),
	}
	latest := map[string]*student.Record{"A1": perWeek["2025-W01"][0]}

	AttachHistory(context.Background(), latest, perWeek, 3, nil, nil)

	assert.Nil(t, latest["A1"].MetricsHistory, "absent history stays nil, not empty")
	assert.Nil(t, latest["A1"].RecentConversations)
}

func TestAttachHistory_ConversationContext(t *testing.T) {
	perWeek := map[string][]*student.Record{
		"2025-W01": week(rec("A1", "2025-W01", map[string]float64{"quiz_score": 90})),
	}
	latest := map[string]*student.Record{"A1": perWeek["2025-W01"][0]}
	store := &stubConvStore{snippets: map[string][]conversation.Snippet{
		"A1": {{Week: "2025-W00", Message: "checked in about quiz prep"}},
	}}

	AttachHistory(context.Background(), latest, perWeek, 3, store, discardLogger())

	require.Len(t, latest["A1"].RecentConversations, 1)
	assert.Equal(t, "checked in about quiz prep", latest["A1"].RecentConversations[0].Message)
}

func TestAttachHistory_FailingConversationStoreDegrades(t *testing.T) {
	perWeek := map[string][]*student.Record{
		"2025-W01": week(rec("A1", "2025-W01", map[string]float64{"quiz_score": 90})),
	}
	latest := map[string]*student.Record{"A1": perWeek["2025-W01"][0]}
	store := &stubConvStore{err: errors.New("connection refused")}

	AttachHistory(context.Background(), latest, perWeek, 3, store, discardLogger())

	assert.NotNil(t, latest["A1"].MetricsHistory, "metric history survives a failing archive")
	assert.Nil(t, latest["A1"].RecentConversations)
}
