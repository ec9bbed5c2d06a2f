package scheduler

import (
	"context"
	"fmt"

	"claimtech_backend/internal/appointments/repository"
	"claimtech_backend/internal/events"
	"claimtech_backend/platform/apperr"
	"claimtech_backend/platform/config"
	"claimtech_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContactResolver resolves the client contact behind an assessment, used to
// address reminder notifications.
type ContactResolver interface {
	ResolveByAssessment(ctx context.Context, assessmentID uuid.UUID) (name, email string, err error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	repo     *repository.Repository
	bus      events.Bus
	contacts ContactResolver
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, contacts ContactResolver, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		repo:     repository.New(pool),
		bus:      bus,
		contacts: contacts,
		log:      log,
	}

	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return err
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return err
	}

	appt, err := w.repo.GetByID(ctx, apptID)
	if err != nil {
		// Deleted appointments do not warrant a retry.
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if appt.Status != repository.StatusScheduled {
		return nil
	}

	var clientName, clientEmail string
	if w.contacts != nil {
		name, email, err := w.contacts.ResolveByAssessment(ctx, appt.AssessmentID)
		if err != nil {
			w.log.BestEffortFailed("resolve reminder contact", err)
		} else {
			clientName, clientEmail = name, email
		}
	}

	if w.bus == nil {
		return nil
	}
	return w.bus.PublishSync(ctx, events.AppointmentReminderDue{
		BaseEvent:         events.NewBaseEvent(),
		AppointmentID:     appt.ID,
		AppointmentNumber: appt.Number,
		StartTime:         appt.ScheduledAt,
		Location:          appt.Location,
		ClientEmail:       clientEmail,
		ClientName:        clientName,
	})
}
