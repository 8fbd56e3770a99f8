// internal/domain/student/record.go
package student

import (
	"sort"

	"student_progress_notifier/internal/domain/conversation"
)

// Record is one student's engagement snapshot for a single week.
// Within one week StudentID is unique across the record set. Metrics keys
// vary per dataset; any named numeric signal is carried as-is.
type Record struct {
	StudentID       string
	StudentName     string
	MessagingHandle string
	Week            string
	Metrics         map[string]float64
	// LastActiveISO is the raw timestamp string from the snapshot, empty when
	// the source recorded no activity timestamp. Parsing happens at rule
	// evaluation time so a malformed value degrades instead of failing a load.
	LastActiveISO string

	// Derived context attached before drafting. Both stay nil when there is
	// nothing to attach; nil is distinct from an empty collection here.
	MetricsHistory      map[string][]HistoryPoint
	RecentConversations []conversation.Snippet
}

// HistoryPoint is one observed value of a metric in a given week.
type HistoryPoint struct {
	Week  string
	Value float64
}

// LatestByStudent returns each student's most recent record across all weeks,
// where "most recent" follows the natural ascending order of week labels.
func LatestByStudent(perWeek map[string][]*Record) map[string]*Record {
	weeks := make([]string, 0, len(perWeek))
	for w := range perWeek {
		weeks = append(weeks, w)
	}
	sort.Strings(weeks)

	latest := make(map[string]*Record)
	for _, w := range weeks {
		for _, rec := range perWeek[w] {
			latest[rec.StudentID] = rec
		}
	}
	return latest
}
