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
	"claimtech_backend/internal/appointments"
	"claimtech_backend/internal/assessments"
	"claimtech_backend/internal/audit"
	"claimtech_backend/internal/email"
	"claimtech_backend/internal/events"
	apphttp "claimtech_backend/internal/http"
	"claimtech_backend/internal/http/router"
	"claimtech_backend/internal/inspections"
	"claimtech_backend/internal/notification"
	"claimtech_backend/internal/requests"
	"claimtech_backend/internal/scheduler"
	"claimtech_backend/internal/storage"
	"claimtech_backend/platform/config"
	"claimtech_backend/platform/db"
	"claimtech_backend/platform/logger"
	"claimtech_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// Photo storage (MinIO), optional in local development
	var photoStorage *adapters.PhotoStorage
	if cfg.IsStorageEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure photo bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err)
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		photoStorage = adapters.NewPhotoStorage(storageSvc)
		log.Info("storage service initialized", "bucket", cfg.GetMinioBucketAssessmentPhotos())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; photo storage disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(sender, log)
	notificationModule.RegisterHandlers(eventBus)

	auditModule := audit.NewModule(pool)
	auditModule.RegisterHandlers(eventBus)
	requestsModule := requests.NewModule(pool, eventBus, val, log)
	assessmentsModule := assessments.NewModule(pool, eventBus, val, log)
	inspectionsModule := inspections.NewModule(pool, val)
	appointmentsModule := appointments.NewModule(pool, eventBus, reminderScheduler, val, log)

	// Cross-module wiring through adapters
	assessmentsModule.SetAuditWriter(adapters.NewAuditWriter(auditModule.Service()))
	assessmentsModule.SetContactReader(adapters.NewContactReader(requestsModule.Service()))
	requestsModule.SetAssessmentCreator(adapters.NewAssessmentCreator(assessmentsModule.Service()))
	notificationModule.SetContactResolver(adapters.NewContactResolver(assessmentsModule.Service(), requestsModule.Service()))
	if photoStorage != nil {
		assessmentsModule.SetPhotoURLSigner(photoStorage)
		assessmentsModule.SetObjectRemover(photoStorage)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			requestsModule,
			assessmentsModule,
			inspectionsModule,
			appointmentsModule,
			auditModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; appointment reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
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
