// internal/infra/drafter/template.go
package drafter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"student_progress_notifier/internal/domain/student"
)

// TemplateDrafter produces a deterministic outreach message from the record,
// its flags and the attached history. It is both the standalone backend and
// the internal fallback of the remote-agent backend.
type TemplateDrafter struct{}

func NewTemplateDrafter() *TemplateDrafter {
	return &TemplateDrafter{}
}

func (d *TemplateDrafter) Draft(ctx context.Context, rec *student.Record, flags []string) (string, error) {
	return TemplateMessage(rec, flags), nil
}

// TemplateMessage renders the deterministic fallback message: a supportive
// check-in naming the observed signals, a compact three-week trend summary
// when present, and the most recent archived note when available.
func TemplateMessage(rec *student.Record, flags []string) string {
	reasons := strings.Join(flags, ", ")

	var histParts []string
	for _, metric := range sortedHistoryMetrics(rec.MetricsHistory) {
		points := rec.MetricsHistory[metric]
		if len(points) < 3 {
			continue
		}
		last := points[len(points)-3:]
		histParts = append(histParts, fmt.Sprintf("%s: %g→%g→%g", metric, last[0].Value, last[1].Value, last[2].Value))
	}
	if len(histParts) > 3 {
		histParts = histParts[:3] // keep short
	}

	var b strings.Builder
	if reasons != "" {
		fmt.Fprintf(&b, "Hi %s, I noticed this week (%s). I'm here to help—what feels unclear or blocked?", rec.StudentName, reasons)
	} else {
		fmt.Fprintf(&b, "Hi %s, great job staying engaged this week. Would you like a quick check-in or tips to keep the momentum?", rec.StudentName)
	}
	if len(histParts) > 0 {
		fmt.Fprintf(&b, " Recent trend — %s.", strings.Join(histParts, "; "))
	}
	if len(rec.RecentConversations) > 0 && rec.RecentConversations[0].Message != "" {
		fmt.Fprintf(&b, " Recent notes: %s", rec.RecentConversations[0].Message)
	}
	return b.String()
}

func sortedHistoryMetrics(history map[string][]student.HistoryPoint) []string {
	names := make([]string, 0, len(history))
	for name := range history {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
