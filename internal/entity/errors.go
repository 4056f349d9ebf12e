package entity

import (
	"errors"
	"fmt"
)

var (
	// Booking errors
	ErrDuplicateBooking    = errors.New("reservation already exists for this slot")
	ErrCapacityExceeded    = errors.New("slot is full")
	ErrAdminCannotBook     = errors.New("administrators cannot book classes")
	ErrOutsideHorizon      = errors.New("date is outside the booking window")
	ErrSlotNotScheduled    = errors.New("slot is not part of the class schedule")
	ErrReservationNotFound = errors.New("reservation not found")

	// Class errors
	ErrClassNotFound          = errors.New("class not found")
	ErrCapacityBelowOccupancy = errors.New("capacity is below current occupancy")
	ErrSlotHasReservations    = errors.New("slot still has reservations")
	ErrClassHasReservations   = errors.New("class still has reservations")

	// Notification errors
	ErrTimeParse        = errors.New("cannot parse class start time")
	ErrTokenUnavailable = errors.New("device token unavailable")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// General errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrTransientStorage = errors.New("storage temporarily unavailable")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden operation")
)

// DispatchPartialFailure is returned by a sweep when some pushes were rejected.
type DispatchPartialFailure struct {
	Sent   int
	Failed int
}

func (e *DispatchPartialFailure) Error() string {
	return fmt.Sprintf("dispatch partially failed: %d sent, %d failed", e.Sent, e.Failed)
}
