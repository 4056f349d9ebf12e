package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"
)

// BookingService owns the reservation lifecycle: booking, cancellation and
// the consistency of occupancy counters with the ledger.
type BookingService interface {
	Book(ctx context.Context, req *BookRequest) (*BookingResult, error)
	Cancel(ctx context.Context, req *CancelRequest) error
	ListUserReservations(ctx context.Context, userID string) ([]*entity.Reservation, error)

	// Audit compares stored occupancy with the ledger for one class.
	Audit(ctx context.Context, classID string) ([]entity.OccupancyDrift, error)
}

// ClassService: администрирование занятий и просмотр расписания
type ClassService interface {
	CreateClass(ctx context.Context, req *ClassRequest) (*entity.Class, error)
	UpdateClass(ctx context.Context, id string, req *ClassRequest) (*entity.Class, error)
	DeleteClass(ctx context.Context, id string) error
	GetClass(ctx context.Context, id string) (*entity.Class, error)
	ListClasses(ctx context.Context) ([]*entity.Class, error)

	Availability(ctx context.Context, classID string, viewer *entity.User) (*entity.ClassAvailability, error)
	Roster(ctx context.Context, classID string, slot entity.Slot) ([]*entity.RosterEntry, error)
	ExportRoster(ctx context.Context, classID, from, to string) ([]byte, error)
}

type UserService interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
	UpsertProfile(ctx context.Context, req *ProfileRequest) (*entity.User, error)
	UpdateDeviceToken(ctx context.Context, userID, token string) error
}

// NotificationScheduler turns a confirmed reservation into a fire-at record.
type NotificationScheduler interface {
	Schedule(ctx context.Context, req *ScheduleRequest) (*entity.ScheduledNotification, error)
	CancelForSlot(ctx context.Context, userID, classID string, slot entity.Slot) (int64, error)
}

// Dispatcher delivers and retires due notifications.
type Dispatcher interface {
	Run(ctx context.Context, now time.Time) (*entity.DispatchReport, error)
}

// Pusher is a token-addressed push gateway.
type Pusher interface {
	SendAll(ctx context.Context, messages []entity.PushMessage) (entity.BatchResult, error)
}

// EventPublisher emits domain events to the outside world. Failures never
// affect the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Clock lets tests pin "now".
type Clock func() time.Time

type BookRequest struct {
	UserID    string `json:"-"`
	ClassID   string `json:"class_id" binding:"required"`
	ClassName string `json:"class_name"`
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
}

type BookingResult struct {
	Message        string              `json:"message"`
	Reservation    *entity.Reservation `json:"reservation"`
	NotificationID string              `json:"notification_id,omitempty"`
}

// CancelRequest carries the slot too, so stale reminders can be cleared even
// when the reservation itself is already gone.
type CancelRequest struct {
	ReservationID string `json:"-"`
	UserID        string `json:"-"`
	ClassID       string `json:"class_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

type ScheduleRequest struct {
	UserID      string
	ClassID     string
	ClassName   string
	Slot        entity.Slot
	DeviceToken string
}

type ClassRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	MaxCapacity int                    `json:"max_capacity"`
	Schedule    entity.Schedule        `json:"schedule"`
	Ranges      []entity.ScheduleRange `json:"ranges"`
}

type ProfileRequest struct {
	UserID      string `json:"-"`
	Name        string `json:"name" binding:"required"`
	Surname     string `json:"surname"`
	DNI         string `json:"dni"`
	Email       string `json:"email"`
	DeviceToken string `json:"device_token"`
}
