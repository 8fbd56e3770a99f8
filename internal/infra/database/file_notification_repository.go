// internal/infra/database/file_notification_repository.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"student_progress_notifier/internal/domain/notification"
)

// FileNotificationRepository keeps the ledger in a single JSON document with
// full-collection read and full-collection replace as the atomic unit. It
// serves local runs and tests; the Postgres repository serves deployments.
type FileNotificationRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileNotificationRepository(path string) *FileNotificationRepository {
	return &FileNotificationRepository{path: path}
}

type notificationRecord struct {
	ID              string `json:"id"`
	StudentID       string `json:"studentId"`
	StudentName     string `json:"studentName"`
	MessagingHandle string `json:"messagingHandle"`
	Message         string `json:"message"`
	CreatedAtISO    string `json:"createdAtIso"`
	Status          string `json:"status"`
}

type ledgerDocument struct {
	Notifications []notificationRecord `json:"notifications"`
}

func (r *FileNotificationRepository) List(ctx context.Context) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileNotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (r *FileNotificationRepository) Add(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return err
	}
	all = append(all, n)
	return r.save(all)
}

func (r *FileNotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load()
	if err != nil {
		return err
	}
	for i, existing := range all {
		if existing.ID == n.ID {
			all[i] = n
			return r.save(all)
		}
	}
	return ErrNotificationNotFound
}

func (r *FileNotificationRepository) load() ([]*notification.Notification, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*notification.Notification{}, nil
		}
		return nil, fmt.Errorf("error reading ledger file: %w", err)
	}

	var doc ledgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing ledger file: %w", err)
	}

	notifications := make([]*notification.Notification, 0, len(doc.Notifications))
	for _, rec := range doc.Notifications {
		createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAtISO)
		if err != nil {
			return nil, fmt.Errorf("error parsing createdAtIso for notification %s: %w", rec.ID, err)
		}
		notifications = append(notifications, &notification.Notification{
			ID:              rec.ID,
			StudentID:       rec.StudentID,
			StudentName:     rec.StudentName,
			MessagingHandle: rec.MessagingHandle,
			Message:         rec.Message,
			CreatedAt:       createdAt,
			Status:          notification.Status(rec.Status),
		})
	}
	return notifications, nil
}

func (r *FileNotificationRepository) save(all []*notification.Notification) error {
	doc := ledgerDocument{Notifications: make([]notificationRecord, 0, len(all))}
	for _, n := range all {
		doc.Notifications = append(doc.Notifications, notificationRecord{
			ID:              n.ID,
			StudentID:       n.StudentID,
			StudentName:     n.StudentName,
			MessagingHandle: n.MessagingHandle,
			Message:         n.Message,
			CreatedAtISO:    n.CreatedAt.Format(time.RFC3339Nano),
			Status:          string(n.Status),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding ledger file: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating ledger directory: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("error writing ledger file: %w", err)
	}
	return nil
}
