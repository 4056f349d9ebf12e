package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/jmoiron/sqlx"
)

type reservationRepository struct {
	q sqlx.ExtContext
}

const reservationColumns = `id, user_id, class_id, class_name, slot_date, slot_time, created_at`

const rosterSelect = `
	SELECT r.id AS reservation_id, r.user_id,
		COALESCE(u.name, '') AS name, COALESCE(u.surname, '') AS surname, COALESCE(u.dni, '') AS dni,
		r.slot_date, r.slot_time, r.created_at
	FROM reservations r
	LEFT JOIN users u ON u.id = r.user_id
`

func (r *reservationRepository) Exists(ctx context.Context, userID, classID string, slot entity.Slot) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE user_id = $1 AND class_id = $2 AND slot_date = $3 AND slot_time = $4
		)
	`
	if err := sqlx.GetContext(ctx, r.q, &exists, query, userID, classID, slot.Date, slot.Time); err != nil {
		return false, classify(fmt.Errorf("failed to check reservation: %w", err))
	}
	return exists, nil
}

func (r *reservationRepository) Create(ctx context.Context, reservation *entity.Reservation) error {
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES (:id, :user_id, :class_id, :class_name, :slot_date, :slot_time, :created_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, reservation); err != nil {
		if isUniqueViolation(err) {
			return entity.ErrDuplicateBooking
		}
		return classify(fmt.Errorf("failed to create reservation: %w", err))
	}
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	var reservation entity.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &reservation, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrReservationNotFound
		}
		return nil, classify(fmt.Errorf("failed to get reservation: %w", err))
	}
	return &reservation, nil
}

func (r *reservationRepository) Delete(ctx context.Context, id, userID string) (*entity.Reservation, error) {
	var reservation entity.Reservation
	query := `DELETE FROM reservations WHERE id = $1 AND user_id = $2 RETURNING ` + reservationColumns
	if err := sqlx.GetContext(ctx, r.q, &reservation, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(fmt.Errorf("failed to delete reservation: %w", err))
	}
	return &reservation, nil
}

func (r *reservationRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Reservation, error) {
	var reservations []*entity.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY slot_date, slot_time, id`
	if err := sqlx.SelectContext(ctx, r.q, &reservations, query, userID); err != nil {
		return nil, classify(fmt.Errorf("failed to list user reservations: %w", err))
	}
	return reservations, nil
}

func (r *reservationRepository) ListBySlot(ctx context.Context, classID string, slot entity.Slot) ([]*entity.RosterEntry, error) {
	var roster []*entity.RosterEntry
	query := rosterSelect + `
		WHERE r.class_id = $1 AND r.slot_date = $2 AND r.slot_time = $3
		ORDER BY surname, reservation_id
	`
	if err := sqlx.SelectContext(ctx, r.q, &roster, query, classID, slot.Date, slot.Time); err != nil {
		return nil, classify(fmt.Errorf("failed to list slot roster: %w", err))
	}
	return roster, nil
}

// ListByClass filters by date range; empty bounds are open.
func (r *reservationRepository) ListByClass(ctx context.Context, classID string, from, to string) ([]*entity.RosterEntry, error) {
	var roster []*entity.RosterEntry
	query := rosterSelect + `
		WHERE r.class_id = $1
			AND ($2 = '' OR r.slot_date >= $2)
			AND ($3 = '' OR r.slot_date <= $3)
		ORDER BY r.slot_date, r.slot_time, surname, reservation_id
	`
	if err := sqlx.SelectContext(ctx, r.q, &roster, query, classID, from, to); err != nil {
		return nil, classify(fmt.Errorf("failed to list class roster: %w", err))
	}
	return roster, nil
}

func (r *reservationRepository) CountByClass(ctx context.Context, classID string) (entity.OccupancyMap, error) {
	rows, err := r.q.QueryxContext(ctx, `
		SELECT slot_date, slot_time, COUNT(*) FROM reservations
		WHERE class_id = $1
		GROUP BY slot_date, slot_time
	`, classID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to count reservations: %w", err))
	}
	defer rows.Close()

	counts := entity.OccupancyMap{}
	for rows.Next() {
		var (
			slot entity.Slot
			n    int
		)
		if err := rows.Scan(&slot.Date, &slot.Time, &n); err != nil {
			return nil, classify(fmt.Errorf("failed to scan reservation count: %w", err))
		}
		counts[slot.Key()] = n
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to iterate reservation counts: %w", err))
	}
	return counts, nil
}
