// Package memory is a process-local Store used by tests and by the
// "memory" storage mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"
)

type state struct {
	classes       map[string]*entity.Class
	occupancy     map[string]entity.OccupancyMap
	reservations  map[string]*entity.Reservation
	notifications map[string]*entity.ScheduledNotification
	users         map[string]*entity.User
}

func newState() *state {
	return &state{
		classes:       make(map[string]*entity.Class),
		occupancy:     make(map[string]entity.OccupancyMap),
		reservations:  make(map[string]*entity.Reservation),
		notifications: make(map[string]*entity.ScheduledNotification),
		users:         make(map[string]*entity.User),
	}
}

func (st *state) clone() *state {
	c := newState()
	for id, class := range st.classes {
		c.classes[id] = copyClass(class)
	}
	for id, occ := range st.occupancy {
		m := make(entity.OccupancyMap, len(occ))
		for k, v := range occ {
			m[k] = v
		}
		c.occupancy[id] = m
	}
	for id, r := range st.reservations {
		cp := *r
		c.reservations[id] = &cp
	}
	for id, n := range st.notifications {
		cp := *n
		c.notifications[id] = &cp
	}
	for id, u := range st.users {
		cp := *u
		c.users[id] = &cp
	}
	return c
}

// Store keeps everything in maps guarded by one mutex. A transaction holds
// the mutex for its whole duration and works on a copy that replaces the
// live state only on success.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock replaces the clock used for CreatedAt/UpdatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(ctx, &view{store: s, tx: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Classes() database.ClassRepository {
	return &classRepo{view{store: s}}
}

func (s *Store) Slots() database.SlotRepository {
	return &slotRepo{view{store: s}}
}

func (s *Store) Reservations() database.ReservationRepository {
	return &reservationRepo{view{store: s}}
}

func (s *Store) Notifications() database.NotificationRepository {
	return &notificationRepo{view{store: s}}
}

func (s *Store) Users() database.UserRepository {
	return &userRepo{view{store: s}}
}

// view resolves the state a repository call works on: the transaction copy
// when tx is set, otherwise the live state under the store mutex.
type view struct {
	store *Store
	tx    *state
}

func (v view) with(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

// clock is only called from inside with, where the mutex is already held.
func (v view) clock() time.Time {
	return v.store.now()
}

func (v *view) Classes() database.ClassRepository              { return &classRepo{*v} }
func (v *view) Slots() database.SlotRepository                 { return &slotRepo{*v} }
func (v *view) Reservations() database.ReservationRepository   { return &reservationRepo{*v} }
func (v *view) Notifications() database.NotificationRepository { return &notificationRepo{*v} }
func (v *view) Users() database.UserRepository                 { return &userRepo{*v} }

func copyClass(c *entity.Class) *entity.Class {
	cp := *c
	cp.Schedule = make(entity.Schedule, len(c.Schedule))
	for d, times := range c.Schedule {
		cp.Schedule[d] = append([]string(nil), times...)
	}
	return &cp
}

func sortReservations(list []*entity.Reservation) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		if list[i].Time != list[j].Time {
			return list[i].Time < list[j].Time
		}
		return list[i].ID < list[j].ID
	})
}

func sortRoster(list []*entity.RosterEntry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		if list[i].Time != list[j].Time {
			return list[i].Time < list[j].Time
		}
		if list[i].Surname != list[j].Surname {
			return list[i].Surname < list[j].Surname
		}
		return list[i].ReservationID < list[j].ReservationID
	})
}
