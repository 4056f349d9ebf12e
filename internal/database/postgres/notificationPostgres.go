package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/jmoiron/sqlx"
)

type notificationRepository struct {
	q sqlx.ExtContext
}

const notificationColumns = `id, user_id, class_id, class_name, slot_date, slot_time, device_token, fire_at, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *entity.ScheduledNotification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO scheduled_notifications (` + notificationColumns + `)
		VALUES (:id, :user_id, :class_id, :class_name, :slot_date, :slot_time, :device_token, :fire_at, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, n); err != nil {
		return classify(fmt.Errorf("failed to create notification: %w", err))
	}
	return nil
}

func (r *notificationRepository) DeleteBySlot(ctx context.Context, userID, classID string, slot entity.Slot) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM scheduled_notifications
		WHERE user_id = $1 AND class_id = $2 AND slot_date = $3 AND slot_time = $4
	`, userID, classID, slot.Date, slot.Time)
	if err != nil {
		return 0, classify(fmt.Errorf("failed to delete notifications: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(fmt.Errorf("failed to get rows affected: %w", err))
	}
	return n, nil
}

// ClaimDue deletes and returns due rows in one statement. SKIP LOCKED lets
// an overlapping sweep take a disjoint batch instead of waiting.
func (r *notificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledNotification, error) {
	var claimed []*entity.ScheduledNotification
	query := `
		DELETE FROM scheduled_notifications
		WHERE id IN (
			SELECT id FROM scheduled_notifications
			WHERE fire_at <= $1
			ORDER BY fire_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns
	if err := sqlx.SelectContext(ctx, r.q, &claimed, query, now, limit); err != nil {
		return nil, classify(fmt.Errorf("failed to claim due notifications: %w", err))
	}
	return claimed, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]*entity.ScheduledNotification, error) {
	var list []*entity.ScheduledNotification
	query := `SELECT ` + notificationColumns + ` FROM scheduled_notifications WHERE user_id = $1 ORDER BY fire_at`
	if err := sqlx.SelectContext(ctx, r.q, &list, query, userID); err != nil {
		return nil, classify(fmt.Errorf("failed to list notifications: %w", err))
	}
	return list, nil
}
