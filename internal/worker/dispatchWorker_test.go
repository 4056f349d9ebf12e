package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Run(ctx context.Context, now time.Time) (*entity.DispatchReport, error) {
	args := m.Called(ctx, now)
	report, _ := args.Get(0).(*entity.DispatchReport)
	return report, args.Error(1)
}

type mockLocker struct {
	mock.Mock
	released int
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	args := m.Called(key, ttl)
	if !args.Bool(0) {
		return nil, false, args.Error(1)
	}
	return func() { m.released++ }, true, nil
}

func TestSweepRunsDispatcherUnderLock(t *testing.T) {
	d := &mockDispatcher{}
	l := &mockLocker{}
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	l.On("TryLock", "lock", time.Minute).Return(true, nil).Once()
	d.On("Run", mock.Anything, now).Return(&entity.DispatchReport{Claimed: 1, Sent: 1}, nil).Once()

	w := NewDispatchWorker(d, l, time.Minute, "lock", time.Minute)
	w.now = func() time.Time { return now }

	assert.True(t, w.Sweep(context.Background()))
	assert.Equal(t, 1, l.released)
	d.AssertExpectations(t)
	l.AssertExpectations(t)
}

// TestSweepSkipsWhenLocked: второй диспетчер не запускается при занятой блокировке
func TestSweepSkipsWhenLocked(t *testing.T) {
	d := &mockDispatcher{}
	l := &mockLocker{}
	l.On("TryLock", "lock", time.Minute).Return(false, nil).Once()

	w := NewDispatchWorker(d, l, time.Minute, "lock", time.Minute)

	assert.False(t, w.Sweep(context.Background()))
	d.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestSweepLockError(t *testing.T) {
	d := &mockDispatcher{}
	l := &mockLocker{}
	l.On("TryLock", "lock", time.Minute).Return(false, errors.New("redis down")).Once()

	w := NewDispatchWorker(d, l, time.Minute, "lock", time.Minute)

	assert.False(t, w.Sweep(context.Background()))
	d.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestSweepReleasesLockOnFailure(t *testing.T) {
	d := &mockDispatcher{}
	l := &mockLocker{}
	l.On("TryLock", "lock", time.Minute).Return(true, nil)
	d.On("Run", mock.Anything, mock.Anything).
		Return(&entity.DispatchReport{Claimed: 2, Sent: 1, Failed: 1}, &entity.DispatchPartialFailure{Sent: 1, Failed: 1})

	w := NewDispatchWorker(d, l, time.Minute, "lock", time.Minute)

	assert.True(t, w.Sweep(context.Background()))
	assert.Equal(t, 1, l.released)
}

type blockingDispatcher struct {
	entered chan struct{}
	unblock chan struct{}
}

func (b *blockingDispatcher) Run(ctx context.Context, now time.Time) (*entity.DispatchReport, error) {
	close(b.entered)
	<-b.unblock
	return &entity.DispatchReport{}, nil
}

func TestLocalLockerAllowsSingleSweep(t *testing.T) {
	d := &blockingDispatcher{entered: make(chan struct{}), unblock: make(chan struct{})}
	w := NewDispatchWorker(d, nil, time.Minute, "lock", time.Minute)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, w.Sweep(context.Background()))
	}()

	<-d.entered
	assert.False(t, w.Sweep(context.Background()))
	close(d.unblock)
	wg.Wait()

	// lock is free again
	release, ok, err := w.locker.TryLock(context.Background(), "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	release()
}
