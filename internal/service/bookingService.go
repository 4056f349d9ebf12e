package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/pkg/metrics"
	"github.com/ds124wfegd/gymbooker/pkg/retry"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const bookingSuccessMessage = "Reserva exitosa"

type bookingService struct {
	store     database.Store
	scheduler NotificationScheduler
	events    EventPublisher
	retry     *retry.RetryManager
	horizon   entity.Horizon
	now       Clock
}

type BookingOptions struct {
	Horizon        entity.Horizon
	MaxRetries     int
	RetryBaseDelay time.Duration
	Now            Clock
}

// NewBookingService создает сервис бронирования
func NewBookingService(store database.Store, scheduler NotificationScheduler, events EventPublisher, opts BookingOptions) BookingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 50 * time.Millisecond
	}
	return &bookingService{
		store:     store,
		scheduler: scheduler,
		events:    events,
		retry:     retry.NewRetryManager(opts.MaxRetries, opts.RetryBaseDelay, entity.ErrTransientStorage),
		horizon:   opts.Horizon,
		now:       opts.Now,
	}
}

// Book резервирует место в слоте занятия
func (s *bookingService) Book(ctx context.Context, req *BookRequest) (*BookingResult, error) {
	if req.UserID == "" || req.ClassID == "" {
		return nil, fmt.Errorf("%w: user and class are required", entity.ErrInvalidInput)
	}
	slot, err := entity.NewSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !s.horizon.Contains(slot.Date, s.now()) {
		metrics.Bookings.WithLabelValues("outside_horizon").Inc()
		return nil, entity.ErrOutsideHorizon
	}

	user, err := s.store.Users().GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		metrics.Bookings.WithLabelValues("admin").Inc()
		return nil, entity.ErrAdminCannotBook
	}

	var reservation *entity.Reservation
	attempt := 0
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			metrics.StorageRetries.Inc()
		}
		attempt++

		return s.store.WithinTx(ctx, func(ctx context.Context, tx database.Repositories) error {
			r, err := s.reserve(ctx, tx, req, slot)
			if err != nil {
				return err
			}
			reservation = r
			return nil
		})
	})
	if err != nil {
		metrics.Bookings.WithLabelValues(outcome(err)).Inc()
		logrus.WithFields(logrus.Fields{
			"user_id":  req.UserID,
			"class_id": req.ClassID,
			"slot":     slot.String(),
		}).Warnf("Booking rejected: %v", err)
		return nil, err
	}

	metrics.Bookings.WithLabelValues("ok").Inc()
	logrus.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"user_id":        reservation.UserID,
		"class_id":       reservation.ClassID,
		"slot":           slot.String(),
	}).Info("Reservation created")

	result := &BookingResult{Message: bookingSuccessMessage, Reservation: reservation}
	if n := s.scheduleReminder(ctx, reservation); n != nil {
		result.NotificationID = n.ID
	}

	publish(ctx, s.events, EventBookingCreated, reservation)
	return result, nil
}

// reserve runs inside the transaction: duplicate check, capacity guard and
// ledger insert commit or roll back together.
func (s *bookingService) reserve(ctx context.Context, tx database.Repositories, req *BookRequest, slot entity.Slot) (*entity.Reservation, error) {
	exists, err := tx.Reservations().Exists(ctx, req.UserID, req.ClassID, slot)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, entity.ErrDuplicateBooking
	}

	class, err := tx.Classes().GetForShare(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if !class.Schedule.Has(slot) {
		return nil, entity.ErrSlotNotScheduled
	}

	accepted, count, err := tx.Slots().TryReserve(ctx, class.ID, slot, class.MaxCapacity)
	if err != nil {
		return nil, err
	}
	if !accepted {
		logrus.Debugf("Slot %s of class %s is full (%d/%d)", slot, class.ID, count, class.MaxCapacity)
		return nil, entity.ErrCapacityExceeded
	}

	name := class.Name
	if name == "" {
		name = req.ClassName
	}
	reservation := &entity.Reservation{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ClassID:   class.ID,
		ClassName: name,
		Slot:      slot,
		CreatedAt: s.now().UTC(),
	}
	if err := tx.Reservations().Create(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// scheduleReminder never fails the booking; problems are only logged.
func (s *bookingService) scheduleReminder(ctx context.Context, r *entity.Reservation) *entity.ScheduledNotification {
	if s.scheduler == nil {
		return nil
	}

	logger := logrus.WithFields(logrus.Fields{
		"reservation_id": r.ID,
		"user_id":        r.UserID,
	})

	user, err := s.store.Users().GetByID(ctx, r.UserID)
	if err != nil {
		logger.Warnf("Cannot load user for reminder: %v", err)
		return nil
	}

	n, err := s.scheduler.Schedule(ctx, &ScheduleRequest{
		UserID:      r.UserID,
		ClassID:     r.ClassID,
		ClassName:   r.ClassName,
		Slot:        r.Slot,
		DeviceToken: user.DeviceToken,
	})
	switch {
	case errors.Is(err, entity.ErrTokenUnavailable):
		logger.Info("No device token, reminder skipped")
	case err != nil:
		logger.Errorf("Failed to schedule reminder: %v", err)
	}
	return n
}

// Cancel отменяет бронирование и освобождает место
func (s *bookingService) Cancel(ctx context.Context, req *CancelRequest) error {
	if req.ReservationID == "" || req.UserID == "" {
		return fmt.Errorf("%w: reservation and user are required", entity.ErrInvalidInput)
	}

	var removed *entity.Reservation
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		removed = nil
		return s.store.WithinTx(ctx, func(ctx context.Context, tx database.Repositories) error {
			r, err := tx.Reservations().Delete(ctx, req.ReservationID, req.UserID)
			if err != nil || r == nil {
				return err
			}
			if _, err := tx.Slots().Release(ctx, r.ClassID, r.Slot); err != nil {
				return err
			}
			removed = r
			return nil
		})
	})
	if err != nil {
		metrics.Cancellations.WithLabelValues(outcome(err)).Inc()
		return err
	}

	classID, slot, ok := s.cancelTarget(ctx, req, removed)
	if ok && s.scheduler != nil {
		if n, err := s.scheduler.CancelForSlot(ctx, req.UserID, classID, slot); err != nil {
			logrus.WithField("reservation_id", req.ReservationID).Warnf("Reminder cleanup failed: %v", err)
		} else if n > 0 {
			logrus.Debugf("Removed %d reminders for reservation %s", n, req.ReservationID)
		}
	}

	if removed == nil {
		metrics.Cancellations.WithLabelValues("missing").Inc()
		logrus.WithField("reservation_id", req.ReservationID).Info("Reservation already gone, nothing released")
		return nil
	}

	metrics.Cancellations.WithLabelValues("ok").Inc()
	logrus.WithFields(logrus.Fields{
		"reservation_id": removed.ID,
		"user_id":        removed.UserID,
		"class_id":       removed.ClassID,
		"slot":           removed.Slot.String(),
	}).Info("Reservation cancelled")

	publish(ctx, s.events, EventBookingCancelled, removed)
	return nil
}

// cancelTarget prefers the deleted row; otherwise falls back to the slot
// named in the request, unless the user holds a live reservation there.
func (s *bookingService) cancelTarget(ctx context.Context, req *CancelRequest, removed *entity.Reservation) (string, entity.Slot, bool) {
	if removed != nil {
		return removed.ClassID, removed.Slot, true
	}
	if req.ClassID == "" {
		return "", entity.Slot{}, false
	}
	slot, err := entity.NewSlot(req.Date, req.Time)
	if err != nil {
		return "", entity.Slot{}, false
	}

	live, err := s.store.Reservations().Exists(ctx, req.UserID, req.ClassID, slot)
	if err != nil {
		logrus.WithField("reservation_id", req.ReservationID).Warnf("Skipping reminder cleanup: %v", err)
		return "", entity.Slot{}, false
	}
	if live {
		return "", entity.Slot{}, false
	}
	return req.ClassID, slot, true
}

func (s *bookingService) ListUserReservations(ctx context.Context, userID string) ([]*entity.Reservation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", entity.ErrInvalidInput)
	}
	return s.store.Reservations().ListByUser(ctx, userID)
}

func (s *bookingService) Audit(ctx context.Context, classID string) ([]entity.OccupancyDrift, error) {
	var drift []entity.OccupancyDrift
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx database.Repositories) error {
		if _, err := tx.Classes().GetForShare(ctx, classID); err != nil {
			return err
		}
		stored, err := tx.Slots().ListOccupancy(ctx, classID)
		if err != nil {
			return err
		}
		ledger, err := tx.Reservations().CountByClass(ctx, classID)
		if err != nil {
			return err
		}

		keys := make(map[string]struct{}, len(stored)+len(ledger))
		for k := range stored {
			keys[k] = struct{}{}
		}
		for k := range ledger {
			keys[k] = struct{}{}
		}
		for k := range keys {
			if stored[k] == ledger[k] {
				continue
			}
			slot, err := entity.ParseSlotKey(k)
			if err != nil {
				return err
			}
			drift = append(drift, entity.OccupancyDrift{Slot: slot, Stored: stored[k], Ledger: ledger[k]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(drift, func(i, j int) bool { return drift[i].Key() < drift[j].Key() })
	if len(drift) > 0 {
		logrus.Warnf("Occupancy drift detected for class %s: %d slots", classID, len(drift))
	}
	return drift, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, entity.ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, entity.ErrCapacityExceeded):
		return "full"
	case errors.Is(err, entity.ErrTransientStorage):
		return "transient"
	case errors.Is(err, entity.ErrClassNotFound), errors.Is(err, entity.ErrSlotNotScheduled):
		return "not_found"
	default:
		return "error"
	}
}
