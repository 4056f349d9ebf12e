package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/jmoiron/sqlx"
)

type slotRepository struct {
	q sqlx.ExtContext
}

func (r *slotRepository) Occupancy(ctx context.Context, classID string, slot entity.Slot) (int, error) {
	var reserved int
	query := `
		SELECT COALESCE(MAX(reserved), 0) FROM class_slot_occupancy
		WHERE class_id = $1 AND slot_date = $2 AND slot_time = $3
	`
	if err := sqlx.GetContext(ctx, r.q, &reserved, query, classID, slot.Date, slot.Time); err != nil {
		return 0, classify(fmt.Errorf("failed to read occupancy: %w", err))
	}
	return reserved, nil
}

func (r *slotRepository) ListOccupancy(ctx context.Context, classID string) (entity.OccupancyMap, error) {
	rows, err := r.q.QueryxContext(ctx, `
		SELECT slot_date, slot_time, reserved FROM class_slot_occupancy
		WHERE class_id = $1 AND reserved > 0
	`, classID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list occupancy: %w", err))
	}
	defer rows.Close()

	occupancy := entity.OccupancyMap{}
	for rows.Next() {
		var (
			slot     entity.Slot
			reserved int
		)
		if err := rows.Scan(&slot.Date, &slot.Time, &reserved); err != nil {
			return nil, classify(fmt.Errorf("failed to scan occupancy: %w", err))
		}
		occupancy[slot.Key()] = reserved
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to iterate occupancy: %w", err))
	}
	return occupancy, nil
}

// TryReserve relies on the upsert's conflict branch locking the slot row, so
// concurrent callers for the same slot are serialized and the WHERE clause
// sees the committed count.
func (r *slotRepository) TryReserve(ctx context.Context, classID string, slot entity.Slot, maxCapacity int) (bool, int, error) {
	query := `
		INSERT INTO class_slot_occupancy (class_id, slot_date, slot_time, reserved)
		SELECT $1, $2, $3, 1 WHERE $4::int >= 1
		ON CONFLICT (class_id, slot_date, slot_time)
		DO UPDATE SET reserved = class_slot_occupancy.reserved + 1
		WHERE class_slot_occupancy.reserved < $4::int
		RETURNING reserved
	`
	var reserved int
	err := r.q.QueryRowxContext(ctx, query, classID, slot.Date, slot.Time, maxCapacity).Scan(&reserved)
	if err == nil {
		return true, reserved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, classify(fmt.Errorf("failed to reserve slot: %w", err))
	}

	current, err := r.Occupancy(ctx, classID, slot)
	if err != nil {
		return false, 0, err
	}
	return false, current, nil
}

func (r *slotRepository) Release(ctx context.Context, classID string, slot entity.Slot) (int, error) {
	query := `
		UPDATE class_slot_occupancy SET reserved = reserved - 1
		WHERE class_id = $1 AND slot_date = $2 AND slot_time = $3 AND reserved > 0
		RETURNING reserved
	`
	var reserved int
	err := r.q.QueryRowxContext(ctx, query, classID, slot.Date, slot.Time).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(fmt.Errorf("failed to release slot: %w", err))
	}
	return reserved, nil
}
