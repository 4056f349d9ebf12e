package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const DefaultMaxCapacity = 10

type Class struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	MaxCapacity int       `json:"max_capacity" db:"max_capacity"`
	Schedule    Schedule  `json:"schedule" db:"schedule"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Schedule maps an ISO date to the time labels offered on it.
type Schedule map[string][]string

// Normalize validates every date and time and returns a copy with
// canonical labels, duplicates removed and times sorted.
func (s Schedule) Normalize() (Schedule, error) {
	out := make(Schedule, len(s))
	for date, times := range s {
		d, err := CanonicalDate(date)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(times)+len(out[d]))
		for _, t := range out[d] {
			seen[t] = struct{}{}
		}
		for _, raw := range times {
			t, err := CanonicalTime(raw)
			if err != nil {
				return nil, err
			}
			seen[t] = struct{}{}
		}
		if len(seen) == 0 {
			continue
		}
		list := make([]string, 0, len(seen))
		for t := range seen {
			list = append(list, t)
		}
		sort.Strings(list)
		out[d] = list
	}
	return out, nil
}

// Has expects a normalized schedule and a canonical slot.
func (s Schedule) Has(slot Slot) bool {
	for _, t := range s[slot.Date] {
		if t == slot.Time {
			return true
		}
	}
	return false
}

// Slots returns every slot of the schedule ordered by date then time.
func (s Schedule) Slots() []Slot {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var slots []Slot
	for _, d := range dates {
		times := append([]string(nil), s[d]...)
		sort.Strings(times)
		for _, t := range times {
			slots = append(slots, Slot{Date: d, Time: t})
		}
	}
	return slots
}

func (s Schedule) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *Schedule) Scan(value interface{}) error {
	if value == nil {
		*s = Schedule{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into Schedule", value)
	}
	return json.Unmarshal(raw, s)
}

// ScheduleRange adds every time in Times to every date from From to To inclusive.
type ScheduleRange struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Times []string `json:"times"`
}

func (r ScheduleRange) Expand(into Schedule) error {
	from, err := time.Parse(DateLayout, r.From)
	if err != nil {
		return fmt.Errorf("%w: range start %q", ErrInvalidInput, r.From)
	}
	to, err := time.Parse(DateLayout, r.To)
	if err != nil {
		return fmt.Errorf("%w: range end %q", ErrInvalidInput, r.To)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: range end before start", ErrInvalidInput)
	}
	if len(r.Times) == 0 {
		return fmt.Errorf("%w: range without times", ErrInvalidInput)
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(DateLayout)
		into[key] = append(into[key], r.Times...)
	}
	return nil
}

// OccupancyMap maps Slot.Key to the number of live reservations.
type OccupancyMap map[string]int

func (m OccupancyMap) Get(slot Slot) int {
	return m[slot.Key()]
}

// Max returns the highest count in the map.
func (m OccupancyMap) Max() int {
	max := 0
	for _, n := range m {
		if n > max {
			max = n
		}
	}
	return max
}

type SlotAvailability struct {
	Slot
	Reserved  int  `json:"reserved"`
	Capacity  int  `json:"capacity"`
	Available int  `json:"available"`
	Full      bool `json:"full"`
}

type ClassAvailability struct {
	ClassID   string             `json:"class_id"`
	ClassName string             `json:"class_name"`
	Slots     []SlotAvailability `json:"slots"`
}

// OccupancyDrift reports a slot whose stored count disagrees with the ledger.
type OccupancyDrift struct {
	Slot
	Stored int `json:"stored"`
	Ledger int `json:"ledger"`
}
