// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"student_progress_notifier/internal/domain/notification"
)

// Custom errors specific to the notification repositories.
var ErrNotificationNotFound = fmt.Errorf("notification not found")

// PostgresNotificationRepository persists the notification ledger in the
// notifications table. Insertion order is preserved via the serial position
// column.
type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) List(ctx context.Context) ([]*notification.Notification, error) {
	query := `SELECT id, student_id, student_name, messaging_handle, message, created_at, status
               FROM notifications ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	query := `SELECT id, student_id, student_name, messaging_handle, message, created_at, status
               FROM notifications WHERE id = $1`
	n := notification.Notification{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.StudentID, &n.StudentName, &n.MessagingHandle, &n.Message, &n.CreatedAt, &n.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return &n, nil
}

func (r *PostgresNotificationRepository) Add(ctx context.Context, n *notification.Notification) error {
	query := `INSERT INTO notifications (id, student_id, student_name, messaging_handle, message, created_at, status)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.StudentID, n.StudentName, n.MessagingHandle, n.Message, n.CreatedAt, n.Status)
	if err != nil {
		return fmt.Errorf("error inserting notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	query := `UPDATE notifications SET message = $1, status = $2 WHERE id = $3 RETURNING id`
	var id string
	err := r.db.QueryRowContext(ctx, query, n.Message, n.Status, n.ID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("error updating notification: %w", err)
	}
	return nil
}

// Helper to scan multiple rows
func scanNotifications(rows *sql.Rows) ([]*notification.Notification, error) {
	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		n := notification.Notification{}
		if err := rows.Scan(
			&n.ID, &n.StudentID, &n.StudentName, &n.MessagingHandle, &n.Message, &n.CreatedAt, &n.Status,
		); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}
