package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type notificationScheduler struct {
	repo     database.NotificationRepository
	location *time.Location
	lead     time.Duration
	now      Clock
}

// NewNotificationScheduler: reminders fire lead before class start, with
// class times interpreted in location.
func NewNotificationScheduler(repo database.NotificationRepository, location *time.Location, lead time.Duration, now Clock) NotificationScheduler {
	if now == nil {
		now = time.Now
	}
	return &notificationScheduler{
		repo:     repo,
		location: location,
		lead:     lead,
		now:      now,
	}
}

// Schedule returns (nil, nil) when the class has already started.
func (s *notificationScheduler) Schedule(ctx context.Context, req *ScheduleRequest) (*entity.ScheduledNotification, error) {
	if req.DeviceToken == "" {
		return nil, entity.ErrTokenUnavailable
	}

	start, err := req.Slot.StartsAt(s.location)
	if err != nil {
		return nil, err
	}
	if !start.After(s.now()) {
		logrus.Debugf("Class %s at %s already started, no reminder", req.ClassID, req.Slot)
		return nil, nil
	}

	n := &entity.ScheduledNotification{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		ClassID:     req.ClassID,
		ClassName:   req.ClassName,
		Slot:        req.Slot,
		DeviceToken: req.DeviceToken,
		FireAt:      start.Add(-s.lead).UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store reminder: %w", err)
	}

	metrics.RemindersScheduled.Inc()
	logrus.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"class_id":        n.ClassID,
		"fire_at":         n.FireAt,
	}).Info("Reminder scheduled")
	return n, nil
}

func (s *notificationScheduler) CancelForSlot(ctx context.Context, userID, classID string, slot entity.Slot) (int64, error) {
	n, err := s.repo.DeleteBySlot(ctx, userID, classID, slot)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders: %w", err)
	}
	return n, nil
}
