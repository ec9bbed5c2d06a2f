package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claimtech_backend/internal/adapters"
	assessmentrepo "claimtech_backend/internal/assessments/repository"
	assessmentsvc "claimtech_backend/internal/assessments/service"
	"claimtech_backend/internal/email"
	"claimtech_backend/internal/events"
	"claimtech_backend/internal/notification"
	requestrepo "claimtech_backend/internal/requests/repository"
	requestsvc "claimtech_backend/internal/requests/service"
	"claimtech_backend/internal/scheduler"
	"claimtech_backend/platform/config"
	"claimtech_backend/platform/db"
	"claimtech_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler worker", "env", cfg.Env)

	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the scheduler worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Worker-side notification wiring (no HTTP handlers required).
	notificationModule := notification.New(sender, log)
	notificationModule.RegisterHandlers(eventBus)

	assessmentsService := assessmentsvc.New(assessmentrepo.New(pool), nil, eventBus, log)
	requestsService := requestsvc.New(requestrepo.New(pool), eventBus, log)
	contacts := adapters.NewContactResolver(assessmentsService, requestsService)
	notificationModule.SetContactResolver(contacts)

	worker, err := scheduler.NewWorker(cfg, pool, eventBus, contacts, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("scheduler worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
