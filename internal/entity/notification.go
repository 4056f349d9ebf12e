package entity

import "time"

const (
	ReminderTitle = "Recordatorio de clase"

	// ReminderBodyFormat takes the class name and the start time.
	ReminderBodyFormat = "En 30 minutos comienza %s a las %s"
)

type ScheduledNotification struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	ClassID   string `json:"class_id" db:"class_id"`
	ClassName string `json:"class_name" db:"class_name"`
	Slot
	DeviceToken string    `json:"device_token" db:"device_token"`
	FireAt      time.Time `json:"fire_at" db:"fire_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PushMessage is one token-addressed message handed to a push gateway.
type PushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// BatchResult counts per-message outcomes of a gateway call.
type BatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type DispatchReport struct {
	Claimed int `json:"claimed"`
	Skipped int `json:"skipped"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}
