package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventBookingCreated     = "booking.created"
	EventBookingCancelled   = "booking.cancelled"
	EventRemindersDelivered = "reminder.dispatched"
)

// publishTimeout bounds a best-effort publish after the operation committed.
var publishTimeout = 2 * time.Second

type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewEvent(eventType string, payload interface{}) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Broker is the transport side of an event publisher: a RabbitMQ exchange
// or a Kafka topic.
type Broker interface {
	Publish(ctx context.Context, key string, message interface{}) error
}

// BrokerAdapter адаптирует брокеры сообщений к EventPublisher
type BrokerAdapter struct {
	brokers []Broker
}

func NewBrokerAdapter(brokers ...Broker) *BrokerAdapter {
	return &BrokerAdapter{brokers: brokers}
}

// Publish sends the event to every broker, keyed by event type.
func (a *BrokerAdapter) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, b := range a.brokers {
		if err := b.Publish(ctx, event.Type, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func publish(ctx context.Context, publisher EventPublisher, eventType string, payload interface{}) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := publisher.Publish(ctx, NewEvent(eventType, payload)); err != nil {
		logrus.WithField("event", eventType).Warnf("Failed to publish event: %v", err)
	}
}
