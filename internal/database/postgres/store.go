package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type repositories struct {
	q sqlx.ExtContext
}

func (r repositories) Classes() database.ClassRepository { return &classRepository{q: r.q} }
func (r repositories) Slots() database.SlotRepository    { return &slotRepository{q: r.q} }
func (r repositories) Reservations() database.ReservationRepository {
	return &reservationRepository{q: r.q}
}
func (r repositories) Notifications() database.NotificationRepository {
	return &notificationRepository{q: r.q}
}
func (r repositories) Users() database.UserRepository { return &userRepository{q: r.q} }

func (s *Store) Classes() database.ClassRepository { return repositories{q: s.db}.Classes() }
func (s *Store) Slots() database.SlotRepository    { return repositories{q: s.db}.Slots() }
func (s *Store) Reservations() database.ReservationRepository {
	return repositories{q: s.db}.Reservations()
}
func (s *Store) Notifications() database.NotificationRepository {
	return repositories{q: s.db}.Notifications()
}
func (s *Store) Users() database.UserRepository { return repositories{q: s.db}.Users() }

// WithinTx runs fn in a READ COMMITTED transaction. Capacity is guarded by
// row locks taken by the statements themselves.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := fn(ctx, repositories{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logrus.Warnf("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}
