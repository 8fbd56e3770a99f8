// internal/domain/progress/deltas.go
package progress

import (
	"sort"

	"student_progress_notifier/internal/domain/student"
)

// Delta is the signed change of one metric between two adjacent weeks.
// Deltas exist only for the duration of a single ingestion run; they are
// never persisted on their own.
type Delta struct {
	StudentID string
	Metric    string
	Previous  float64
	Current   float64
	Change    float64
}

// SortedWeeks returns the week labels of perWeek in ascending natural order.
func SortedWeeks(perWeek map[string][]*student.Record) []string {
	weeks := make([]string, 0, len(perWeek))
	for w := range perWeek {
		weeks = append(weeks, w)
	}
	sort.Strings(weeks)
	return weeks
}

// LastNWeeks restricts perWeek to its n most recent weeks. When n is zero or
// covers every week the input map is returned unchanged.
func LastNWeeks(perWeek map[string][]*student.Record, n int) map[string][]*student.Record {
	weeks := SortedWeeks(perWeek)
	if n <= 0 || n >= len(weeks) {
		return perWeek
	}
	subset := make(map[string][]*student.Record, n)
	for _, w := range weeks[len(weeks)-n:] {
		subset[w] = perWeek[w]
	}
	return subset
}

// ComputeDeltas computes week-over-week metric changes per student across
// every pair of chronologically adjacent weeks.
//
// A student missing from the earlier week of a pair contributes no deltas for
// that pair (no synthetic zero baseline), and a metric present in only one of
// the two records is skipped for that pair. Deltas accumulate across all
// adjacent pairs, so a student observed in three weeks yields deltas from
// both transitions. Pure function; metric names are walked in sorted order so
// identical input always yields identically ordered output.
func ComputeDeltas(perWeek map[string][]*student.Record) map[string][]Delta {
	weeks := SortedWeeks(perWeek)
	byStudent := make(map[string][]Delta)

	for i := 1; i < len(weeks); i++ {
		prevByID := recordsByID(perWeek[weeks[i-1]])
		for _, curr := range perWeek[weeks[i]] {
			prev, ok := prevByID[curr.StudentID]
			if !ok {
				continue
			}
			for _, metric := range sortedMetricNames(curr.Metrics) {
				prevVal, ok := prev.Metrics[metric]
				if !ok {
					continue
				}
				currVal := curr.Metrics[metric]
				byStudent[curr.StudentID] = append(byStudent[curr.StudentID], Delta{
					StudentID: curr.StudentID,
					Metric:    metric,
					Previous:  prevVal,
					Current:   currVal,
					Change:    currVal - prevVal,
				})
			}
		}
	}
	return byStudent
}

func recordsByID(records []*student.Record) map[string]*student.Record {
	byID := make(map[string]*student.Record, len(records))
	for _, r := range records {
		byID[r.StudentID] = r
	}
	return byID
}

func sortedMetricNames(metrics map[string]float64) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
