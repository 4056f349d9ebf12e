package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/database/memory"
	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/stretchr/testify/require"
)

var testLocation = time.FixedZone("CEST", 2*3600)

// 2024-05-10 08:00 local
var testNow = time.Date(2024, 5, 10, 8, 0, 0, 0, testLocation)

const (
	today    = "2024-05-10"
	tomorrow = "2024-05-11"
)

type fixture struct {
	store     *memory.Store
	booking   BookingService
	classes   ClassService
	scheduler NotificationScheduler
	events    *recordingPublisher
	class     *entity.Class
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore(), capacity)
}

func newFixtureWithStore(t *testing.T, store *memory.Store, capacity int) *fixture {
	t.Helper()

	clock := func() time.Time { return testNow }
	store.SetClock(clock)
	horizon := entity.Horizon{Days: 5, Location: testLocation}
	events := &recordingPublisher{}

	scheduler := NewNotificationScheduler(store.Notifications(), testLocation, 30*time.Minute, clock)
	f := &fixture{
		store:     store,
		scheduler: scheduler,
		events:    events,
		classes:   NewClassService(store, horizon, clock),
		booking: NewBookingService(store, scheduler, events, BookingOptions{
			Horizon:        horizon,
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			Now:            clock,
		}),
	}

	class, err := f.classes.CreateClass(context.Background(), &ClassRequest{
		Name:        "Boxeo",
		MaxCapacity: capacity,
		Schedule: entity.Schedule{
			today:    {"18:00", "19:00"},
			tomorrow: {"18:00"},
		},
	})
	require.NoError(t, err)
	f.class = class

	f.addUser(t, "admin", entity.RoleAdmin, "")
	return f
}

func (f *fixture) addUser(t *testing.T, id string, role entity.Role, token string) {
	t.Helper()
	require.NoError(t, f.store.Users().Upsert(context.Background(), &entity.User{
		ID:          id,
		Name:        "Name " + id,
		Surname:     "Surname " + id,
		DNI:         "DNI-" + id,
		Role:        role,
		DeviceToken: token,
	}))
}

func (f *fixture) book(t *testing.T, userID, date, clock string) *BookingResult {
	t.Helper()
	res, err := f.booking.Book(context.Background(), &BookRequest{
		UserID:  userID,
		ClassID: f.class.ID,
		Date:    date,
		Time:    clock,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) occupancy(t *testing.T, date, clock string) int {
	t.Helper()
	n, err := f.store.Slots().Occupancy(context.Background(), f.class.ID, entity.Slot{Date: date, Time: clock})
	require.NoError(t, err)
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakePusher accepts every token except those listed in reject.
type fakePusher struct {
	mu      sync.Mutex
	reject  map[string]bool
	failAll error
	sent    []entity.PushMessage
}

func (p *fakePusher) SendAll(ctx context.Context, messages []entity.PushMessage) (entity.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll != nil {
		return entity.BatchResult{}, p.failAll
	}
	var res entity.BatchResult
	for _, m := range messages {
		if p.reject[m.Token] {
			res.Failed++
			continue
		}
		p.sent = append(p.sent, m)
		res.Sent++
	}
	return res, nil
}

// flakyStore fails the first failures transactions with a transient error.
type flakyStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx database.Repositories) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return entity.ErrTransientStorage
	}
	return s.Store.WithinTx(ctx, fn)
}
