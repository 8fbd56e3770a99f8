// internal/domain/progress/history.go
package progress

import (
	"context"

	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/domain/conversation"
	"student_progress_notifier/internal/domain/student"
)

// DefaultHistoryWindow is the bounded trailing window of weeks attached as
// drafting context.
const DefaultHistoryWindow = 3

// RecentConversationLimit caps how many archived snippets are attached.
const RecentConversationLimit = 5

// AttachHistory augments each latest record with derived, non-authoritative
// drafting context: per-metric value points over the most recent windowSize
// weeks, and recent conversation snippets from the archive store.
//
// Weeks where a student or metric was not recorded are skipped, never
// interpolated or zero-filled; points are ordered by week ascending. A
// student with no observed history keeps a nil MetricsHistory (absent, not
// empty). convStore may be nil; a failing store degrades to no conversation
// context with a logged diagnostic and never aborts attachment.
func AttachHistory(ctx context.Context, latest map[string]*student.Record, perWeek map[string][]*student.Record, windowSize int, convStore conversation.Store, logger *logrus.Entry) {
	if windowSize <= 0 {
		windowSize = DefaultHistoryWindow
	}
	weeks := SortedWeeks(perWeek)
	if len(weeks) > windowSize {
		weeks = weeks[len(weeks)-windowSize:]
	}

	byWeek := make(map[string]map[string]*student.Record, len(weeks))
	for _, w := range weeks {
		byWeek[w] = recordsByID(perWeek[w])
	}

	for studentID, rec := range latest {
		var history map[string][]student.HistoryPoint
		for _, w := range weeks {
			r, ok := byWeek[w][studentID]
			if !ok {
				continue
			}
			for _, metric := range sortedMetricNames(r.Metrics) {
				if history == nil {
					history = make(map[string][]student.HistoryPoint)
				}
				history[metric] = append(history[metric], student.HistoryPoint{
					Week:  w,
					Value: r.Metrics[metric],
				})
			}
		}
		if history != nil {
			rec.MetricsHistory = history
		}

		if convStore == nil {
			continue
		}
		snippets, err := convStore.Recent(ctx, studentID, RecentConversationLimit)
		if err != nil {
			if logger != nil {
				logger.WithError(err).WithField("student_id", studentID).Warn("Conversation history unavailable, continuing without context")
			}
			continue
		}
		if len(snippets) > 0 {
			rec.RecentConversations = snippets
		}
	}
}
