package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logger.WithField(logging.FieldComponent, logging.ComponentApp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	log := logger.WithField(logging.FieldComponent, logging.ComponentApp)

	db, err := storage.Open(ctx, storage.Dialect(cfg.DBDriver), cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	users, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	logger.WithFields(logrus.Fields{
		logging.FieldComponent: logging.ComponentStorage,
		"driver":               db.Dialect(),
		"users":                users,
	}).Info("database ready")

	authSvc := auth.NewService(db, logger, cfg.SessionDuration)
	if err := ensureAdmin(ctx, authSvc, cfg, log); err != nil {
		return err
	}

	h, err := handlers.NewHandlers(db, authSvc, logger, cfg.SecureCookie)
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}
	router, err := setupRouter(h, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	scheduler, err := sessionCleanup(authSvc, cfg.SessionCleanupSchedule, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func setupRouter(h *handlers.Handlers, logger logrus.FieldLogger) (http.Handler, error) {
	router, err := handlers.NewRouter(h, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}
	return router, nil
}

// sessionCleanup schedules the purge of expired sessions.
func sessionCleanup(authSvc *auth.Service, schedule string, logger *logrus.Logger) (*cron.Cron, error) {
	log := logger.WithField(logging.FieldComponent, logging.ComponentJobs)
	c := cron.New(cron.WithLogger(cron.PrintfLogger(log)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := authSvc.PurgeExpiredSessions(ctx); err != nil {
			log.WithError(err).Error("session cleanup failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule session cleanup: %w", err)
	}
	return c, nil
}

// ensureAdmin creates the configured bootstrap account if it does not exist yet.
func ensureAdmin(ctx context.Context, authSvc *auth.Service, cfg *config.Config, log logrus.FieldLogger) error {
	if cfg.AdminUser == "" {
		return nil
	}
	_, err := authSvc.Register(ctx, auth.RegisterInput{
		Username: cfg.AdminUser,
		Password: cfg.AdminPassword,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateUsername):
		log.WithField("username", cfg.AdminUser).Debug("admin user already exists")
		return nil
	case err != nil:
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	log.WithField("username", cfg.AdminUser).Info("admin user created")
	return nil
}
