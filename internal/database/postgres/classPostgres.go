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

type classRepository struct {
	q sqlx.ExtContext
}

const classColumns = `id, name, description, max_capacity, schedule, created_at, updated_at`

func (r *classRepository) Create(ctx context.Context, class *entity.Class) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO classes (id, name, description, max_capacity, schedule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	if _, err := r.q.ExecContext(ctx, query,
		class.ID, class.Name, class.Description, class.MaxCapacity, class.Schedule, now,
	); err != nil {
		return classify(fmt.Errorf("failed to create class: %w", err))
	}

	class.CreatedAt, class.UpdatedAt = now, now
	return nil
}

func (r *classRepository) get(ctx context.Context, id, lock string) (*entity.Class, error) {
	var class entity.Class
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 ` + lock
	if err := sqlx.GetContext(ctx, r.q, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrClassNotFound
		}
		return nil, classify(fmt.Errorf("failed to get class: %w", err))
	}
	return &class, nil
}

func (r *classRepository) GetByID(ctx context.Context, id string) (*entity.Class, error) {
	return r.get(ctx, id, "")
}

func (r *classRepository) GetForShare(ctx context.Context, id string) (*entity.Class, error) {
	return r.get(ctx, id, "FOR SHARE")
}

func (r *classRepository) GetForUpdate(ctx context.Context, id string) (*entity.Class, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *classRepository) List(ctx context.Context) ([]*entity.Class, error) {
	var classes []*entity.Class
	query := `SELECT ` + classColumns + ` FROM classes ORDER BY name, id`
	if err := sqlx.SelectContext(ctx, r.q, &classes, query); err != nil {
		return nil, classify(fmt.Errorf("failed to list classes: %w", err))
	}
	return classes, nil
}

func (r *classRepository) Update(ctx context.Context, class *entity.Class) error {
	query := `
		UPDATE classes
		SET name = $2, description = $3, max_capacity = $4, schedule = $5, updated_at = $6
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	row := r.q.QueryRowxContext(ctx, query,
		class.ID, class.Name, class.Description, class.MaxCapacity, class.Schedule, time.Now().UTC(),
	)
	if err := row.Scan(&class.CreatedAt, &class.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrClassNotFound
		}
		return classify(fmt.Errorf("failed to update class: %w", err))
	}
	return nil
}

func (r *classRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return classify(fmt.Errorf("failed to delete class: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if n == 0 {
		return entity.ErrClassNotFound
	}
	return nil
}
