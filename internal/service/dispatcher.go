package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/pkg/metrics"

	"github.com/sirupsen/logrus"
)

type dispatcher struct {
	repo      database.NotificationRepository
	pusher    Pusher
	events    EventPublisher
	batchSize int
}

// NewDispatcher: records are claimed (deleted) before the push, so each one
// is delivered at most once.
func NewDispatcher(repo database.NotificationRepository, pusher Pusher, events EventPublisher, batchSize int) Dispatcher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &dispatcher{
		repo:      repo,
		pusher:    pusher,
		events:    events,
		batchSize: batchSize,
	}
}

// Run выполняет один проход: отправляет и удаляет наступившие напоминания
func (d *dispatcher) Run(ctx context.Context, now time.Time) (*entity.DispatchReport, error) {
	started := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(started).Seconds()) }()

	report := &entity.DispatchReport{}
	for {
		batch, err := d.repo.ClaimDue(ctx, now, d.batchSize)
		if err != nil {
			return report, fmt.Errorf("failed to claim due reminders: %w", err)
		}
		report.Claimed += len(batch)

		d.deliver(ctx, batch, report)

		if len(batch) < d.batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	if report.Claimed == 0 {
		logrus.Debug("No reminders due")
		return report, nil
	}

	metrics.RemindersDispatched.WithLabelValues("sent").Add(float64(report.Sent))
	metrics.RemindersDispatched.WithLabelValues("failed").Add(float64(report.Failed))
	metrics.RemindersDispatched.WithLabelValues("skipped").Add(float64(report.Skipped))

	logrus.WithFields(logrus.Fields{
		"claimed": report.Claimed,
		"sent":    report.Sent,
		"failed":  report.Failed,
		"skipped": report.Skipped,
	}).Info("Reminder sweep completed")

	publish(ctx, d.events, EventRemindersDelivered, report)

	if report.Failed > 0 {
		logrus.Warnf("%d reminders failed to deliver", report.Failed)
		return report, &entity.DispatchPartialFailure{Sent: report.Sent, Failed: report.Failed}
	}
	return report, nil
}

func (d *dispatcher) deliver(ctx context.Context, batch []*entity.ScheduledNotification, report *entity.DispatchReport) {
	messages := make([]entity.PushMessage, 0, len(batch))
	for _, n := range batch {
		if n.DeviceToken == "" {
			report.Skipped++
			continue
		}
		messages = append(messages, reminderMessage(n))
	}
	if len(messages) == 0 {
		return
	}

	res, err := d.pusher.SendAll(ctx, messages)
	if err != nil {
		logrus.Errorf("Push gateway call failed for %d reminders: %v", len(messages), err)
		report.Failed += len(messages)
		return
	}
	report.Sent += res.Sent
	report.Failed += res.Failed
}

func reminderMessage(n *entity.ScheduledNotification) entity.PushMessage {
	return entity.PushMessage{
		Token: n.DeviceToken,
		Title: entity.ReminderTitle,
		Body:  fmt.Sprintf(entity.ReminderBodyFormat, n.ClassName, n.Time),
		Data: map[string]string{
			"classId": n.ClassID,
			"fecha":   n.Date,
			"horario": n.Time,
		},
	}
}
