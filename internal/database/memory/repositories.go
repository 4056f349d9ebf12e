package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"
)

type classRepo struct{ view }

func (r *classRepo) Create(ctx context.Context, class *entity.Class) error {
	return r.with(func(st *state) error {
		now := r.clock()
		class.CreatedAt, class.UpdatedAt = now, now
		st.classes[class.ID] = copyClass(class)
		return nil
	})
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*entity.Class, error) {
	var out *entity.Class
	err := r.with(func(st *state) error {
		c, ok := st.classes[id]
		if !ok {
			return entity.ErrClassNotFound
		}
		out = copyClass(c)
		return nil
	})
	return out, err
}

func (r *classRepo) GetForShare(ctx context.Context, id string) (*entity.Class, error) {
	return r.GetByID(ctx, id)
}

func (r *classRepo) GetForUpdate(ctx context.Context, id string) (*entity.Class, error) {
	return r.GetByID(ctx, id)
}

func (r *classRepo) List(ctx context.Context) ([]*entity.Class, error) {
	var out []*entity.Class
	err := r.with(func(st *state) error {
		for _, c := range st.classes {
			out = append(out, copyClass(c))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *classRepo) Update(ctx context.Context, class *entity.Class) error {
	return r.with(func(st *state) error {
		existing, ok := st.classes[class.ID]
		if !ok {
			return entity.ErrClassNotFound
		}
		class.CreatedAt = existing.CreatedAt
		class.UpdatedAt = r.clock()
		st.classes[class.ID] = copyClass(class)
		return nil
	})
}

func (r *classRepo) Delete(ctx context.Context, id string) error {
	return r.with(func(st *state) error {
		if _, ok := st.classes[id]; !ok {
			return entity.ErrClassNotFound
		}
		delete(st.classes, id)
		delete(st.occupancy, id)
		return nil
	})
}

type slotRepo struct{ view }

func (r *slotRepo) Occupancy(ctx context.Context, classID string, slot entity.Slot) (int, error) {
	var n int
	err := r.with(func(st *state) error {
		n = st.occupancy[classID].Get(slot)
		return nil
	})
	return n, err
}

func (r *slotRepo) ListOccupancy(ctx context.Context, classID string) (entity.OccupancyMap, error) {
	out := entity.OccupancyMap{}
	err := r.with(func(st *state) error {
		for k, v := range st.occupancy[classID] {
			out[k] = v
		}
		return nil
	})
	return out, err
}

func (r *slotRepo) TryReserve(ctx context.Context, classID string, slot entity.Slot, maxCapacity int) (bool, int, error) {
	var (
		accepted bool
		count    int
	)
	err := r.with(func(st *state) error {
		occ, ok := st.occupancy[classID]
		if !ok {
			occ = entity.OccupancyMap{}
			st.occupancy[classID] = occ
		}
		count = occ[slot.Key()]
		if count >= maxCapacity {
			return nil
		}
		count++
		occ[slot.Key()] = count
		accepted = true
		return nil
	})
	return accepted, count, err
}

func (r *slotRepo) Release(ctx context.Context, classID string, slot entity.Slot) (int, error) {
	var count int
	err := r.with(func(st *state) error {
		occ := st.occupancy[classID]
		count = occ.Get(slot)
		if count > 0 {
			count--
			occ[slot.Key()] = count
		}
		return nil
	})
	return count, err
}

type reservationRepo struct{ view }

func sameSlot(r *entity.Reservation, userID, classID string, slot entity.Slot) bool {
	return r.UserID == userID && r.ClassID == classID && r.Slot == slot
}

func (r *reservationRepo) Exists(ctx context.Context, userID, classID string, slot entity.Slot) (bool, error) {
	var found bool
	err := r.with(func(st *state) error {
		for _, res := range st.reservations {
			if sameSlot(res, userID, classID, slot) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *reservationRepo) Create(ctx context.Context, reservation *entity.Reservation) error {
	return r.with(func(st *state) error {
		for _, res := range st.reservations {
			if sameSlot(res, reservation.UserID, reservation.ClassID, reservation.Slot) {
				return entity.ErrDuplicateBooking
			}
		}
		if reservation.CreatedAt.IsZero() {
			reservation.CreatedAt = r.clock()
		}
		cp := *reservation
		st.reservations[reservation.ID] = &cp
		return nil
	})
}

func (r *reservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	var out *entity.Reservation
	err := r.with(func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return entity.ErrReservationNotFound
		}
		cp := *res
		out = &cp
		return nil
	})
	return out, err
}

func (r *reservationRepo) Delete(ctx context.Context, id, userID string) (*entity.Reservation, error) {
	var out *entity.Reservation
	err := r.with(func(st *state) error {
		res, ok := st.reservations[id]
		if !ok || res.UserID != userID {
			return nil
		}
		delete(st.reservations, id)
		out = res
		return nil
	})
	return out, err
}

func (r *reservationRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Reservation, error) {
	var out []*entity.Reservation
	err := r.with(func(st *state) error {
		for _, res := range st.reservations {
			if res.UserID == userID {
				cp := *res
				out = append(out, &cp)
			}
		}
		return nil
	})
	sortReservations(out)
	return out, err
}

func rosterEntry(st *state, res *entity.Reservation) *entity.RosterEntry {
	e := &entity.RosterEntry{
		ReservationID: res.ID,
		UserID:        res.UserID,
		Slot:          res.Slot,
		CreatedAt:     res.CreatedAt,
	}
	if u, ok := st.users[res.UserID]; ok {
		e.Name, e.Surname, e.DNI = u.Name, u.Surname, u.DNI
	}
	return e
}

func (r *reservationRepo) ListBySlot(ctx context.Context, classID string, slot entity.Slot) ([]*entity.RosterEntry, error) {
	var out []*entity.RosterEntry
	err := r.with(func(st *state) error {
		for _, res := range st.reservations {
			if res.ClassID == classID && res.Slot == slot {
				out = append(out, rosterEntry(st, res))
			}
		}
		return nil
	})
	sortRoster(out)
	return out, err
}

func (r *reservationRepo) ListByClass(ctx context.Context, classID string, from, to string) ([]*entity.RosterEntry, error) {
	var out []*entity.RosterEntry
	err := r.with(func(st *state) error {
		for _, res := range st.reservations {
			if res.ClassID != classID {
				continue
			}
			if from != "" && res.Date < from {
				continue
			}
			if to != "" && res.Date > to {
				continue
			}
			out = append(out, rosterEntry(st, res))
		}
		return nil
	})
	sortRoster(out)
	return out, err
}

func (r *reservationRepo) CountByClass(ctx context.Context, classID string) (entity.OccupancyMap, error) {
	out := entity.OccupancyMap{}
	err := r.with(func(st *state) error {
		for _, res := range st.reservations {
			if res.ClassID == classID {
				out[res.Slot.Key()]++
			}
		}
		return nil
	})
	return out, err
}

type notificationRepo struct{ view }

func (r *notificationRepo) Create(ctx context.Context, n *entity.ScheduledNotification) error {
	return r.with(func(st *state) error {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = r.clock()
		}
		cp := *n
		st.notifications[n.ID] = &cp
		return nil
	})
}

func (r *notificationRepo) DeleteBySlot(ctx context.Context, userID, classID string, slot entity.Slot) (int64, error) {
	var deleted int64
	err := r.with(func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID && n.ClassID == classID && n.Slot == slot {
				delete(st.notifications, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

func (r *notificationRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledNotification, error) {
	var out []*entity.ScheduledNotification
	err := r.with(func(st *state) error {
		for _, n := range st.notifications {
			if !n.FireAt.After(now) {
				out = append(out, n)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].FireAt.Equal(out[j].FireAt) {
				return out[i].FireAt.Before(out[j].FireAt)
			}
			return out[i].ID < out[j].ID
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		for _, n := range out {
			delete(st.notifications, n.ID)
		}
		return nil
	})
	return out, err
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string) ([]*entity.ScheduledNotification, error) {
	var out []*entity.ScheduledNotification
	err := r.with(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID {
				cp := *n
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, err
}

type userRepo struct{ view }

func (r *userRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var out *entity.User
	err := r.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return entity.ErrUserNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r *userRepo) Upsert(ctx context.Context, user *entity.User) error {
	return r.with(func(st *state) error {
		now := r.clock()
		existing, ok := st.users[user.ID]
		if ok {
			user.Role = existing.Role
			user.CreatedAt = existing.CreatedAt
			if user.DeviceToken == "" {
				user.DeviceToken = existing.DeviceToken
			}
		} else {
			if user.Role == "" {
				user.Role = entity.RoleUser
			}
			user.CreatedAt = now
		}
		user.UpdatedAt = now
		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (r *userRepo) UpdateDeviceToken(ctx context.Context, id, token string) error {
	return r.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return entity.ErrUserNotFound
		}
		u.DeviceToken = token
		u.UpdatedAt = r.clock()
		return nil
	})
}
