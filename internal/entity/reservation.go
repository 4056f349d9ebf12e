package entity

import "time"

type Reservation struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	ClassID   string `json:"class_id" db:"class_id"`
	ClassName string `json:"class_name" db:"class_name"`
	Slot
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RosterEntry is a reservation joined with the member's profile.
type RosterEntry struct {
	ReservationID string `json:"reservation_id" db:"reservation_id"`
	UserID        string `json:"user_id" db:"user_id"`
	Name          string `json:"name" db:"name"`
	Surname       string `json:"surname" db:"surname"`
	DNI           string `json:"dni" db:"dni"`
	Slot
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
