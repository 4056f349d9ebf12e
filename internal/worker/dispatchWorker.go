package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/internal/service"

	"github.com/sirupsen/logrus"
)

// Locker grants a lease on key; release must be called when ok is true.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLocker serializes sweeps inside one process.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

type DispatchWorker struct {
	dispatcher service.Dispatcher
	locker     Locker
	interval   time.Duration
	lockKey    string
	lockTTL    time.Duration
	now        func() time.Time
}

func NewDispatchWorker(dispatcher service.Dispatcher, locker Locker, interval time.Duration, lockKey string, lockTTL time.Duration) *DispatchWorker {
	if locker == nil {
		locker = &LocalLocker{}
	}
	return &DispatchWorker{
		dispatcher: dispatcher,
		locker:     locker,
		interval:   interval,
		lockKey:    lockKey,
		lockTTL:    lockTTL,
		now:        time.Now,
	}
}

// Start runs a sweep immediately and then on every tick until ctx is done.
func (w *DispatchWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Infof("Reminder dispatch worker started, interval %s", w.interval)
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reminder dispatch worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход, если блокировка свободна.
// Возвращает false, если проход пропущен.
func (w *DispatchWorker) Sweep(ctx context.Context) bool {
	release, ok, err := w.locker.TryLock(ctx, w.lockKey, w.lockTTL)
	if err != nil {
		logrus.Errorf("Failed to take dispatcher lock: %v", err)
		return false
	}
	if !ok {
		logrus.Info("Another dispatcher run is active, skipping tick")
		return false
	}
	defer release()

	report, err := w.dispatcher.Run(ctx, w.now())

	var partial *entity.DispatchPartialFailure
	switch {
	case errors.As(err, &partial):
		logrus.Warnf("Reminder sweep finished with failures: %d sent, %d failed", partial.Sent, partial.Failed)
	case err != nil:
		claimed := 0
		if report != nil {
			claimed = report.Claimed
		}
		logrus.Errorf("Reminder sweep failed after %d claimed: %v", claimed, err)
	}
	return true
}
