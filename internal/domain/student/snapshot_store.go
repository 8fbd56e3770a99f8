// internal/domain/student/snapshot_store.go
package student

import "context"

// SnapshotStore supplies, for each week, the set of per-student records.
// This decouples the pipeline from how snapshots are stored and parsed.
//
// Load must fail with a descriptive error when required identity fields are
// missing from a record, and must never fail merely because optional fields
// (last activity, individual metrics) are absent. An empty source yields an
// empty map, not an error.
type SnapshotStore interface {
	Load(ctx context.Context, source string) (map[string][]*Record, error)
}
