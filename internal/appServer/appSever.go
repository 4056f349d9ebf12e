package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/gymbooker/config"
	"github.com/ds124wfegd/gymbooker/internal/service"
	"github.com/ds124wfegd/gymbooker/internal/transport"
	"github.com/ds124wfegd/gymbooker/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(addr string, cfg *config.ServerConfig, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewServer запускает HTTP API и, если включено, встроенный диспетчер напоминаний
func NewServer(cfg *config.Config) {
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer d.close()

	// Initialize services
	scheduler := service.NewNotificationScheduler(d.store.Notifications(), d.horizon.Location, cfg.Booking.ReminderLead, time.Now)
	bookingService := service.NewBookingService(d.store, scheduler, d.events, service.BookingOptions{
		Horizon:        d.horizon,
		MaxRetries:     cfg.Booking.MaxRetries,
		RetryBaseDelay: cfg.Booking.RetryBaseDelay,
		Now:            time.Now,
	})
	classService := service.NewClassService(d.store, d.horizon, time.Now)
	userService := service.NewUserService(d.store.Users())

	if cfg.Dispatcher.Embedded {
		go d.dispatchWorker(cfg).Start(ctx)
		logrus.Info("Embedded reminder dispatcher started")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(transport.Handlers{
		Booking: transport.NewBookingHandler(bookingService),
		Class:   transport.NewClassHandler(classService, userService),
		User:    transport.NewUserHandler(userService),
	}, transport.RouterOptions{
		Auth:           middleware.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer),
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        cfg.Metrics.Enabled,
	})

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg.Server.Host+":"+cfg.Server.Port, &cfg.Server, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")
	waitForSignal()
	logrus.Print("App Shutting Down")

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}

// RunDispatcher runs the reminder sweep as a standalone process. Several
// replicas may run; the lock keeps sweeps from overlapping.
func RunDispatcher(cfg *config.Config, once bool) {
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer d.close()

	w := d.dispatchWorker(cfg)
	if once {
		w.Sweep(ctx)
		return
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	waitForSignal()
	logrus.Print("Dispatcher Shutting Down")
	cancel()
	<-done

	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("error occured on metrics server shutting down: %s", err.Error())
		}
	}
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit
}
