package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"
	migrate "github.com/ds124wfegd/gymbooker/pkg/postgres"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run only when GYM_TEST_DATABASE_DSN points at a disposable database,
// e.g. "host=localhost user=gym password=gym dbname=gym_test sslmode=disable".
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GYM_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("GYM_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrate.RunMigrations(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE scheduled_notifications, reservations, class_slot_occupancy, classes, users CASCADE`)
	require.NoError(t, err)

	return NewStore(db)
}

func createClass(t *testing.T, store *Store, capacity int, slot entity.Slot) *entity.Class {
	t.Helper()
	class := &entity.Class{
		ID:          uuid.NewString(),
		Name:        "Boxeo",
		MaxCapacity: capacity,
		Schedule:    entity.Schedule{slot.Date: {slot.Time}},
	}
	require.NoError(t, store.Classes().Create(context.Background(), class))
	return class
}

func createUser(t *testing.T, store *Store, id string) {
	t.Helper()
	require.NoError(t, store.Users().Upsert(context.Background(), &entity.User{ID: id, Name: id}))
}

// TestTryReserveCapacityGuard: конкурентные резервы не превышают вместимость
func TestTryReserveCapacityGuard(t *testing.T) {
	store := newTestStore(t)
	slot := entity.Slot{Date: "2024-05-10", Time: "18:00"}
	class := createClass(t, store, 3, slot)

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(context.Background(), func(ctx context.Context, tx database.Repositories) error {
				ok, _, err := tx.Slots().TryReserve(ctx, class.ID, slot, class.MaxCapacity)
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	n, err := store.Slots().Occupancy(context.Background(), class.ID, slot)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, count, err := store.Slots().TryReserve(context.Background(), class.ID, slot, class.MaxCapacity)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, count)
}

func TestTryReserveZeroCapacity(t *testing.T) {
	store := newTestStore(t)
	slot := entity.Slot{Date: "2024-05-10", Time: "18:00"}
	class := createClass(t, store, 1, slot)

	ok, count, err := store.Slots().TryReserve(context.Background(), class.ID, slot, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, count)
}

func TestReleaseNeverBelowZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	slot := entity.Slot{Date: "2024-05-10", Time: "18:00"}
	class := createClass(t, store, 2, slot)

	_, _, err := store.Slots().TryReserve(ctx, class.ID, slot, 2)
	require.NoError(t, err)

	n, err := store.Slots().Release(ctx, class.ID, slot)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.Slots().Release(ctx, class.ID, slot)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReservationDuplicateMapped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	slot := entity.Slot{Date: "2024-05-10", Time: "18:00"}
	class := createClass(t, store, 5, slot)
	createUser(t, store, "u1")

	first := &entity.Reservation{ID: uuid.NewString(), UserID: "u1", ClassID: class.ID, ClassName: class.Name, Slot: slot}
	require.NoError(t, store.Reservations().Create(ctx, first))

	second := &entity.Reservation{ID: uuid.NewString(), UserID: "u1", ClassID: class.ID, ClassName: class.Name, Slot: slot}
	assert.ErrorIs(t, store.Reservations().Create(ctx, second), entity.ErrDuplicateBooking)

	exists, err := store.Reservations().Exists(ctx, "u1", class.ID, slot)
	require.NoError(t, err)
	assert.True(t, exists)

	removed, err := store.Reservations().Delete(ctx, first.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, slot, removed.Slot)

	removed, err = store.Reservations().Delete(ctx, first.ID, "u1")
	require.NoError(t, err)
	assert.Nil(t, removed)
}

// TestClaimDueTakesEachRecordOnce: наступившие напоминания забираются ровно один раз
func TestClaimDueTakesEachRecordOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 16, 0, 0, 0, time.UTC)

	for i, fireAt := range []time.Time{now.Add(-time.Hour), now, now.Add(time.Hour)} {
		require.NoError(t, store.Notifications().Create(ctx, &entity.ScheduledNotification{
			ID:          uuid.NewString(),
			UserID:      "u1",
			ClassID:     "c1",
			ClassName:   "Boxeo",
			Slot:        entity.Slot{Date: "2024-05-10", Time: fmt.Sprintf("1%d:00", 7+i)},
			DeviceToken: "42",
			FireAt:      fireAt,
		}))
	}

	claimed, err := store.Notifications().ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)

	again, err := store.Notifications().ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	left, err := store.Notifications().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "19:00", left[0].Time)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"serialization", &pq.Error{Code: codeSerializationFailure}, true},
		{"deadlock", &pq.Error{Code: codeDeadlockDetected}, true},
		{"connection", &pq.Error{Code: "08006"}, true},
		{"unique", &pq.Error{Code: codeUniqueViolation}, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(fmt.Errorf("wrap: %w", tt.err))
			assert.Equal(t, tt.transient, errors.Is(err, entity.ErrTransientStorage))
		})
	}
	assert.True(t, isUniqueViolation(fmt.Errorf("wrap: %w", &pq.Error{Code: codeUniqueViolation})))
}
