package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/models"
)

type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func insertNotification(ctx context.Context, tx pgx.Tx, n *models.Notification) error {
	return tx.QueryRow(ctx,
		`INSERT INTO notifications (transaction_id, days_before, recipients, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING notification_id, created_at`,
		n.TransactionID, n.DaysBefore, n.Recipients, n.Message,
	).Scan(&n.NotificationID, &n.CreatedAt)
}

// ListDue returns the notifications whose firing date is exactly today
// and whose parent record is active, not soft-deleted and still carries
// an end date. Insertion order, so a sweep processes them predictably.
func (r *NotificationRepository) ListDue(ctx context.Context, today clock.Date) ([]*models.DueNotification, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT n.notification_id, n.transaction_id, n.days_before, n.recipients, n.message, n.sent, n.sent_at, n.created_at,
		        t.title, tt.name, t.priority, t.end_date, t.user_id
		 FROM notifications n
		 JOIN transactions t ON t.transaction_id = n.transaction_id
		 JOIN transaction_types tt ON tt.type_id = t.type_id
		 WHERE n.sent = FALSE
		   AND t.status = 'active'
		   AND t.is_deleted = FALSE
		   AND t.end_date IS NOT NULL
		   AND t.end_date - n.days_before = $1
		 ORDER BY n.created_at ASC`,
		today.Time(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*models.DueNotification
	for rows.Next() {
		d := &models.DueNotification{}
		if err := rows.Scan(&d.NotificationID, &d.TransactionID, &d.DaysBefore, &d.Recipients, &d.Message,
			&d.Sent, &d.SentAt, &d.CreatedAt, &d.Title, &d.TypeName, &d.Priority, &d.EndDate, &d.OwnerID); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// MarkSent retires a notification. Once sent no sweep picks it up again.
func (r *NotificationRepository) MarkSent(ctx context.Context, notificationID int) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET sent = TRUE, sent_at = NOW() WHERE notification_id = $1`,
		notificationID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) ListByTransaction(ctx context.Context, transactionID int) ([]*models.Notification, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT notification_id, transaction_id, days_before, recipients, message, sent, sent_at, created_at
		 FROM notifications WHERE transaction_id = $1 ORDER BY days_before DESC`,
		transactionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.NotificationID, &n.TransactionID, &n.DaysBefore, &n.Recipients,
			&n.Message, &n.Sent, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
