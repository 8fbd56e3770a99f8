// internal/domain/progress/flags.go
package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"student_progress_notifier/internal/domain/student"
)

// Flag codes produced by the rule set. Drop flags are composed per delta,
// see dropFlag.
const (
	FlagNoLastActive = "no_last_active_recorded"
	FlagInactivity   = "inactivity_over_7_days"
)

// Config holds the rule thresholds. Zero values are not meaningful; use
// DefaultConfig and override from application configuration.
type Config struct {
	// InactivityThreshold is how long since the last recorded activity before
	// the inactivity flag fires.
	InactivityThreshold time.Duration
	// DropThreshold marks a metric delta as a drop when change <= threshold.
	// The boundary is inclusive.
	DropThreshold float64
}

// DefaultConfig returns the standard thresholds: 7 days and -5.0.
func DefaultConfig() Config {
	return Config{
		InactivityThreshold: 7 * 24 * time.Hour,
		DropThreshold:       -5.0,
	}
}

// lastActiveLayouts are the timestamp shapes accepted from snapshots.
var lastActiveLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecideFlags evaluates the rule set against every student's latest record
// and its deltas. The caller supplies now so evaluation stays deterministic.
//
// Per student, in order: the no-activity flag when no last-active timestamp
// was recorded, else the inactivity flag when now minus the timestamp exceeds
// the threshold; then one drop flag per qualifying delta, in the order the
// deltas were supplied. A malformed last-active timestamp contributes no flag
// at all. Students with zero qualifying conditions are omitted from the
// result entirely.
func DecideFlags(latest map[string]*student.Record, deltas map[string][]Delta, now time.Time, cfg Config) map[string][]string {
	flags := make(map[string][]string)
	for studentID, rec := range latest {
		var studentFlags []string

		if rec.LastActiveISO == "" {
			studentFlags = append(studentFlags, FlagNoLastActive)
		} else if last, ok := parseLastActive(rec.LastActiveISO); ok {
			if now.Sub(last) > cfg.InactivityThreshold {
				studentFlags = append(studentFlags, FlagInactivity)
			}
		}

		for _, d := range deltas[studentID] {
			if d.Change <= cfg.DropThreshold {
				studentFlags = append(studentFlags, dropFlag(d))
			}
		}

		if len(studentFlags) > 0 {
			flags[studentID] = studentFlags
		}
	}
	return flags
}

func parseLastActive(raw string) (time.Time, bool) {
	for _, layout := range lastActiveLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dropFlag(d Delta) string {
	return fmt.Sprintf("drop_%s_%s_%s", d.Metric, formatMetricValue(d.Previous), formatMetricValue(d.Current))
}

// formatMetricValue renders a metric value with a minimal decimal
// representation that always keeps at least one fractional digit, so integral
// values read "80.0" rather than "80" inside flag codes.
func formatMetricValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
