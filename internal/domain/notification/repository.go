// internal/domain/notification/repository.go
package notification

import "context"

// Repository defines the persistence operations for Notification records.
// Implementations are plain collections: the dedup rule and the status state
// machine are owned by the ledger service on top of this interface.
//
// List returns records in insertion order. GetByID and Update report a
// missing record with the database package's ErrNotificationNotFound.
type Repository interface {
	List(ctx context.Context) ([]*Notification, error)
	GetByID(ctx context.Context, id string) (*Notification, error)
	Add(ctx context.Context, n *Notification) error
	Update(ctx context.Context, n *Notification) error
}
