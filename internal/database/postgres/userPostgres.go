package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/jmoiron/sqlx"
)

type userRepository struct {
	q sqlx.ExtContext
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	query := `
		SELECT id, name, surname, dni, email, role, COALESCE(device_token, '') AS device_token, created_at, updated_at
		FROM users WHERE id = $1
	`
	if err := sqlx.GetContext(ctx, r.q, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}
		return nil, classify(fmt.Errorf("failed to get user: %w", err))
	}
	return &user, nil
}

// Upsert never touches role on conflict and keeps the stored token when the
// incoming one is empty.
func (r *userRepository) Upsert(ctx context.Context, user *entity.User) error {
	if user.Role == "" {
		user.Role = entity.RoleUser
	}
	query := `
		INSERT INTO users (id, name, surname, dni, email, role, device_token)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			surname = EXCLUDED.surname,
			dni = EXCLUDED.dni,
			email = EXCLUDED.email,
			device_token = COALESCE(EXCLUDED.device_token, users.device_token),
			updated_at = NOW()
		RETURNING role, COALESCE(device_token, ''), created_at, updated_at
	`
	row := r.q.QueryRowxContext(ctx, query,
		user.ID, user.Name, user.Surname, user.DNI, user.Email, user.Role, user.DeviceToken,
	)
	if err := row.Scan(&user.Role, &user.DeviceToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return classify(fmt.Errorf("failed to upsert user: %w", err))
	}
	return nil
}

func (r *userRepository) UpdateDeviceToken(ctx context.Context, id, token string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET device_token = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to update device token: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if n == 0 {
		return entity.ErrUserNotFound
	}
	return nil
}
