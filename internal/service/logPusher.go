package service

import (
	"context"

	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/sirupsen/logrus"
)

// logPusher is the gateway used when no push provider is configured.
type logPusher struct{}

func NewLogPusher() Pusher {
	return logPusher{}
}

func (logPusher) SendAll(ctx context.Context, messages []entity.PushMessage) (entity.BatchResult, error) {
	for _, m := range messages {
		logrus.WithFields(logrus.Fields{
			"token": m.Token,
			"title": m.Title,
			"data":  m.Data,
		}).Info(m.Body)
	}
	return entity.BatchResult{Sent: len(messages)}, nil
}
