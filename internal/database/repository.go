package database

import (
	"context"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"
)

type ClassRepository interface {
	Create(ctx context.Context, class *entity.Class) error
	GetByID(ctx context.Context, id string) (*entity.Class, error)
	List(ctx context.Context) ([]*entity.Class, error)
	Update(ctx context.Context, class *entity.Class) error
	Delete(ctx context.Context, id string) error

	// Locking reads, meaningful inside WithinTx
	GetForShare(ctx context.Context, id string) (*entity.Class, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Class, error)
}

// SlotRepository keeps the per-slot occupancy counters of a class.
type SlotRepository interface {
	Occupancy(ctx context.Context, classID string, slot entity.Slot) (int, error)
	ListOccupancy(ctx context.Context, classID string) (entity.OccupancyMap, error)

	// TryReserve increments the counter unless it already reached maxCapacity.
	// newCount is the counter after the call in both cases.
	TryReserve(ctx context.Context, classID string, slot entity.Slot, maxCapacity int) (accepted bool, newCount int, err error)

	// Release decrements the counter, never below zero.
	Release(ctx context.Context, classID string, slot entity.Slot) (int, error)
}

type ReservationRepository interface {
	Exists(ctx context.Context, userID, classID string, slot entity.Slot) (bool, error)

	// Create returns entity.ErrDuplicateBooking when the user already holds the slot.
	Create(ctx context.Context, reservation *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)

	// Delete removes the reservation owned by userID and returns it.
	// A missing reservation yields (nil, nil).
	Delete(ctx context.Context, id, userID string) (*entity.Reservation, error)

	ListByUser(ctx context.Context, userID string) ([]*entity.Reservation, error)
	ListBySlot(ctx context.Context, classID string, slot entity.Slot) ([]*entity.RosterEntry, error)
	ListByClass(ctx context.Context, classID string, from, to string) ([]*entity.RosterEntry, error)
	CountByClass(ctx context.Context, classID string) (entity.OccupancyMap, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.ScheduledNotification) error
	DeleteBySlot(ctx context.Context, userID, classID string, slot entity.Slot) (int64, error)

	// ClaimDue atomically removes and returns up to limit records with FireAt <= now.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledNotification, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.ScheduledNotification, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// Upsert creates or updates the profile. Role is written only on insert.
	Upsert(ctx context.Context, user *entity.User) error
	UpdateDeviceToken(ctx context.Context, id, token string) error
}

type Repositories interface {
	Classes() ClassRepository
	Slots() SlotRepository
	Reservations() ReservationRepository
	Notifications() NotificationRepository
	Users() UserRepository
}

// Store is the root persistence handle. Repositories handed to fn share one
// transaction; fn's error rolls it back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
