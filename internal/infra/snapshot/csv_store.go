// internal/infra/snapshot/csv_store.go
package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"student_progress_notifier/internal/domain/student"
)

// ErrInvalidSnapshot marks a snapshot file that is missing required identity
// columns. Optional columns never trigger it.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// requiredColumns are the identity fields every snapshot must carry.
var requiredColumns = []string{"student_id", "student_name", "messaging_handle"}

// reservedColumns are not treated as metrics.
var reservedColumns = map[string]bool{
	"student_id":       true,
	"student_name":     true,
	"messaging_handle": true,
	"last_active":      true,
}

// CSVStore loads weekly snapshots from CSV files. The source is either a
// directory containing one .csv per week or a single .csv file; the filename
// without extension is the week label, so lexical filename order is the
// chronological week order.
type CSVStore struct {
	defaultDir string
}

func NewCSVStore(defaultDir string) *CSVStore {
	return &CSVStore{defaultDir: defaultDir}
}

// Load implements student.SnapshotStore. A nonexistent or empty source
// yields an empty map; any numeric cell in a non-reserved column becomes a
// metric, blank or non-numeric cells are skipped for that record.
func (s *CSVStore) Load(ctx context.Context, source string) (map[string][]*student.Record, error) {
	base := source
	if base == "" {
		base = s.defaultDir
	}

	files, err := listSnapshotFiles(base)
	if err != nil {
		return nil, err
	}

	perWeek := make(map[string][]*student.Record, len(files))
	for _, path := range files {
		week := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		records, err := loadWeekFile(path, week)
		if err != nil {
			return nil, err
		}
		perWeek[week] = records
	}
	return perWeek, nil
}

func listSnapshotFiles(base string) ([]string, error) {
	info, err := os.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading snapshot source %s: %w", base, err)
	}

	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(base), ".csv") {
			return []string{base}, nil
		}
		return nil, fmt.Errorf("%w: snapshot source %s is not a CSV file or directory", ErrInvalidSnapshot, base)
	}

	matches, err := filepath.Glob(filepath.Join(base, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("error listing snapshot files in %s: %w", base, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func loadWeekFile(path, week string) ([]*student.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening snapshot file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // rows validated per-cell below

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing snapshot file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return []*student.Record{}, nil
	}

	header := normalizeHeader(rows[0])
	columnIndex := make(map[string]int, len(header))
	for i, name := range header {
		columnIndex[name] = i
	}

	var missing []string
	for _, required := range requiredColumns {
		if _, ok := columnIndex[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: file %s missing columns: %v", ErrInvalidSnapshot, filepath.Base(path), missing)
	}

	records := make([]*student.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := &student.Record{
			StudentID:       cell(row, columnIndex["student_id"]),
			StudentName:     cell(row, columnIndex["student_name"]),
			MessagingHandle: cell(row, columnIndex["messaging_handle"]),
			Week:            week,
			Metrics:         make(map[string]float64),
		}
		if idx, ok := columnIndex["last_active"]; ok {
			rec.LastActiveISO = cell(row, idx)
		}
		for name, idx := range columnIndex {
			if reservedColumns[name] {
				continue
			}
			raw := cell(row, idx)
			if raw == "" {
				continue
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			rec.Metrics[name] = value
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeHeader(row []string) []string {
	normalized := make([]string, len(row))
	for i, name := range row {
		normalized[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	}
	return normalized
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
