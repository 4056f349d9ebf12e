package entity

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	slotKeySeparator = "|"
)

// Slot addresses one (date, time) cell of a class schedule.
type Slot struct {
	Date string `json:"date" db:"slot_date"`
	Time string `json:"time" db:"slot_time"`
}

// NewSlot validates date and time and returns the slot in canonical form.
// "9:00" and "09:00" both map to "09:00".
func NewSlot(date, clock string) (Slot, error) {
	d, err := CanonicalDate(date)
	if err != nil {
		return Slot{}, err
	}
	t, err := CanonicalTime(clock)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

func CanonicalDate(date string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidInput, date)
	}
	return d.Format(DateLayout), nil
}

func CanonicalTime(clock string) (string, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return "", fmt.Errorf("%w: time %q", ErrInvalidInput, clock)
	}
	return t.Format(TimeLayout), nil
}

// Key is the occupancy map key of the slot.
func (s Slot) Key() string {
	return s.Date + slotKeySeparator + s.Time
}

func ParseSlotKey(key string) (Slot, error) {
	date, clock, ok := strings.Cut(key, slotKeySeparator)
	if !ok {
		return Slot{}, fmt.Errorf("%w: slot key %q", ErrInvalidInput, key)
	}
	return NewSlot(date, clock)
}

func (s Slot) String() string {
	return s.Date + " " + s.Time
}

// StartsAt resolves the slot to an instant in loc.
func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrTimeParse, s, err)
	}
	return t, nil
}

// Horizon is the window of bookable dates: today through today+Days,
// measured in Location.
type Horizon struct {
	Days     int
	Location *time.Location
}

func (h Horizon) today(now time.Time) time.Time {
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Contains reports whether date lies inside the window as of now.
func (h Horizon) Contains(date string, now time.Time) bool {
	today := h.today(now)
	d, err := time.ParseInLocation(DateLayout, date, today.Location())
	if err != nil {
		return false
	}
	return !d.Before(today) && !d.After(today.AddDate(0, 0, h.Days))
}

// Dates lists every date in the window in ascending order.
func (h Horizon) Dates(now time.Time) []string {
	today := h.today(now)
	dates := make([]string, 0, h.Days+1)
	for i := 0; i <= h.Days; i++ {
		dates = append(dates, today.AddDate(0, 0, i).Format(DateLayout))
	}
	return dates
}
