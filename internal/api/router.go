package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

type RouterConfig struct {
	Scheduling     SchedulingService
	Orchestrator   OrchestratorService
	Questionnaires QuestionnaireService
	Reminders      ReminderService

	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    *logging.Logger
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware)

	// Unauthenticated surface
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated API
	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/slots", listSlotsHandler(cfg.Scheduling))

		r.Post("/appointments", bookAppointmentHandler(cfg.Scheduling))
		r.Get("/appointments", listAppointmentsHandler(cfg.Scheduling))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Scheduling))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Scheduling))
		r.Get("/appointments/{id}/questionnaire", getQuestionnaireHandler(cfg.Questionnaires))

		r.Post("/automatic-booking", automaticBookingHandler(cfg.Orchestrator))

		r.Post("/reminders", scheduleReminderHandler(cfg.Scheduling, cfg.Reminders))
		r.Post("/questionnaires", submitQuestionnaireHandler(cfg.Questionnaires))
	})

	return r
}
