package appServer

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/ds124wfegd/gymbooker/config"
	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/database/memory"
	repository "github.com/ds124wfegd/gymbooker/internal/database/postgres"
	"github.com/ds124wfegd/gymbooker/internal/entity"
	"github.com/ds124wfegd/gymbooker/internal/service"
	"github.com/ds124wfegd/gymbooker/internal/worker"
	"github.com/ds124wfegd/gymbooker/pkg/kafka"
	"github.com/ds124wfegd/gymbooker/pkg/postgres"
	"github.com/ds124wfegd/gymbooker/pkg/rabbitmq"
	"github.com/ds124wfegd/gymbooker/pkg/redis"
	"github.com/ds124wfegd/gymbooker/pkg/telegram"

	"github.com/sirupsen/logrus"
)

// deps holds the infrastructure shared by the API and the dispatcher process.
type deps struct {
	store   database.Store
	events  service.EventPublisher
	pusher  service.Pusher
	locker  worker.Locker
	horizon entity.Horizon
	closers []func()
}

func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	loc, err := cfg.Booking.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid booking timezone: %w", err)
	}
	d.horizon = entity.Horizon{Days: cfg.Booking.HorizonDays, Location: loc}

	switch cfg.Booking.Store {
	case "memory":
		logrus.Warn("Using in-memory store, data is lost on restart")
		d.store = memory.NewStore()
	default:
		db, err := postgres.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		d.closers = append(d.closers, func() { db.Close() })

		if err := postgres.RunMigrations(ctx, db); err != nil {
			d.close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		d.store = repository.NewStore(db)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logrus.Errorf("Redis unavailable: %v. Falling back to in-process dispatcher lock", err)
		} else {
			d.closers = append(d.closers, func() { client.Close() })
			d.locker = redis.NewLock(client)
		}
	}
	if d.locker == nil {
		d.locker = &worker.LocalLocker{}
	}

	var brokers []service.Broker
	if cfg.Rabbit.Enabled {
		pub, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			logrus.Errorf("RabbitMQ unavailable: %v. Continuing without it...", err)
		} else {
			d.closers = append(d.closers, func() { pub.Close() })
			brokers = append(brokers, pub)
		}
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		d.closers = append(d.closers, func() { producer.Close() })
		brokers = append(brokers, producer)
	}
	if len(brokers) > 0 {
		d.events = service.NewBrokerAdapter(brokers...)
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		pusher, err := telegram.NewPusher(cfg.Telegram.BotToken, cfg.Telegram.Endpoint, &http.Client{Timeout: cfg.Telegram.Timeout})
		if err != nil {
			logrus.Errorf("Telegram bot unavailable: %v. Reminders will only be logged", err)
		} else {
			d.pusher = pusher
			logrus.Info("Telegram bot initialized")
		}
	} else {
		logrus.Warn("Telegram bot token not provided, reminders will only be logged")
	}
	if d.pusher == nil {
		d.pusher = service.NewLogPusher()
	}

	return d, nil
}

func (d *deps) dispatchWorker(cfg *config.Config) *worker.DispatchWorker {
	dispatcher := service.NewDispatcher(d.store.Notifications(), d.pusher, d.events, cfg.Dispatcher.BatchSize)
	return worker.NewDispatchWorker(dispatcher, d.locker, cfg.Dispatcher.Interval, cfg.Dispatcher.LockKey, cfg.Dispatcher.LockTTL)
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
