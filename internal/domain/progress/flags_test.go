package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student_progress_notifier/internal/domain/student"
)

var flagNow = time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

func latestOf(records ...*student.Record) map[string]*student.Record {
	latest := make(map[string]*student.Record, len(records))
	for _, r := range records {
		latest[r.StudentID] = r
	}
	return latest
}

func TestDecideFlags_NoLastActiveRecorded(t *testing.T) {
	latest := latestOf(&student.Record{StudentID: "A1"})

	flags := DecideFlags(latest, nil, flagNow, DefaultConfig())

	assert.Equal(t, []string{FlagNoLastActive}, flags["A1"])
}

func TestDecideFlags_Inactivity(t *testing.T) {
	nineDaysAgo := flagNow.Add(-9 * 24 * time.Hour).Format(time.RFC3339)
	fiveDaysAgo := flagNow.Add(-5 * 24 * time.Hour).Format(time.RFC3339)

	latest := latestOf(
		&student.Record{StudentID: "A1", LastActiveISO: nineDaysAgo},
		&student.Record{StudentID: "B2", LastActiveISO: fiveDaysAgo},
	)

	flags := DecideFlags(latest, nil, flagNow, DefaultConfig())

	assert.Equal(t, []string{FlagInactivity}, flags["A1"])
	assert.NotContains(t, flags, "B2")
}

func TestDecideFlags_ExactThresholdIsNotInactive(t *testing.T) {
	exactlySevenDays := flagNow.Add(-7 * 24 * time.Hour).Format(time.RFC3339)
	latest := latestOf(&student.Record{StudentID: "A1", LastActiveISO: exactlySevenDays})

	flags := DecideFlags(latest, nil, flagNow, DefaultConfig())

	assert.NotContains(t, flags, "A1", "inactivity requires strictly more than the threshold")
}

func TestDecideFlags_NoLastActiveExcludesInactivity(t *testing.T) {
	latest := latestOf(&student.Record{StudentID: "A1", LastActiveISO: ""})

	flags := DecideFlags(latest, nil, flagNow, DefaultConfig())

	assert.Equal(t, []string{FlagNoLastActive}, flags["A1"])
}

func TestDecideFlags_UnparseableLastActiveYieldsNoFlag(t *testing.T) {
	latest := latestOf(&student.Record{StudentID: "A1", LastActiveISO: "not-a-timestamp"})

	flags := DecideFlags(latest, nil, flagNow, DefaultConfig())

	assert.NotContains(t, flags, "A1")
}

func TestDecideFlags_DropFlagFormat(t *testing.T) {
	latest := latestOf(&student.Record{StudentID: "A1", LastActiveISO: flagNow.Format(time.RFC3339)})
	deltas := map[string][]Delta{
		"A1": {{StudentID: "A1", Metric: "quiz_score", Previous: 80, Current: 72, Change: -8}},
	}

	flags := DecideFlags(latest, deltas, flagNow, DefaultConfig())

	assert.Equal(t, []string{"drop_quiz_score_80.0_72.0"}, flags["A1"])
}

func TestDecideFlags_DropThresholdIsInclusive(t *testing.T) {
	latest := latestOf(&student.Record{StudentID: "A1", LastActiveISO: flagNow.Format(time.RFC3339)})
	deltas := map[string][]Delta{
		"A1": {
			{Metric: "quiz_score", Previous: 80, Current: 75, Change: -5},
			{Metric: "attendance", Previous: 10, Current: 5.001, Change: -4.999},
		},
	}

	flags := DecideFlags(latest, deltas, flagNow, DefaultConfig())

	require.Len(t, flags["A1"], 1, "-5.0 qualifies, -4.999 does not")
	assert.Equal(t, "drop_quiz_score_80.0_75.0", flags["A1"][0])
}

func TestDecideFlags_ActivityFlagPrecedesDropFlags(t *testing.T) {
	latest := latestOf(&student.Record{StudentID: "A1"})
	deltas := map[string][]Delta{
		"A1": {
			{Metric: "attendance", Previous: 10, Current: 2, Change: -8},
			{Metric: "quiz_score", Previous: 80, Current: 60, Change: -20},
		},
	}

	flags := DecideFlags(latest, deltas, flagNow, DefaultConfig())

	assert.Equal(t, []string{
		FlagNoLastActive,
		"drop_attendance_10.0_2.0",
		"drop_quiz_score_80.0_60.0",
	}, flags["A1"])
}

func TestDecideFlags_UnflaggedStudentsOmitted(t *testing.T) {
	latest := latestOf(
		&student.Record{StudentID: "A1"},
		&student.Record{StudentID: "B2", LastActiveISO: flagNow.Format(time.RFC3339)},
	)

	flags := DecideFlags(latest, nil, flagNow, DefaultConfig())

	assert.Contains(t, flags, "A1")
	assert.NotContains(t, flags, "B2", "clean students are absent, not mapped to an empty slice")
}

func TestDecideFlags_CustomThresholds(t *testing.T) {
	threeDaysAgo := flagNow.Add(-3 * 24 * time.Hour).Format(time.RFC3339)
	latest := latestOf(&student.Record{StudentID: "A1", LastActiveISO: threeDaysAgo})
	deltas := map[string][]Delta{
		"A1": {{Metric: "quiz_score", Previous: 80, Current: 78, Change: -2}},
	}
	cfg := Config{
		InactivityThreshold: 2 * 24 * time.Hour,
		DropThreshold:       -1.5,
	}

	flags := DecideFlags(latest, deltas, flagNow, cfg)

	assert.Equal(t, []string{FlagInactivity, "drop_quiz_score_80.0_78.0"}, flags["A1"])
}

func TestFormatMetricValue(t *testing.T) {
	assert.Equal(t, "80.0", formatMetricValue(80))
	assert.Equal(t, "72.5", formatMetricValue(72.5))
	assert.Equal(t, "-5.0", formatMetricValue(-5))
	assert.Equal(t, "0.0", formatMetricValue(0))
}

func TestParseLastActive_AcceptedLayouts(t *testing.T) {
	for _, raw := range []string{
		"2025-09-10T08:30:00Z",
		"2025-09-10T08:30:00",
		"2025-09-10 08:30:00",
		"2025-09-10",
	} {
		_, ok := parseLastActive(raw)
		assert.True(t, ok, "expected %q to parse", raw)
	}

	_, ok := parseLastActive("10/09/2025")
	assert.False(t, ok)
}
