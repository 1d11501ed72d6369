package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/auth"
	"github.com/carebridge/clinic-scheduling/internal/orchestrator"
	"github.com/carebridge/clinic-scheduling/internal/questionnaire"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
)

// Service interfaces consumed by the handlers. The concrete types in
// scheduling/orchestrator/questionnaire/reminder satisfy them; tests swap in
// fakes.

type SchedulingService interface {
	Book(ctx context.Context, p auth.Principal, req scheduling.BookRequest) (*scheduling.Appointment, error)
	Reschedule(ctx context.Context, p auth.Principal, appointmentID, newSlotID uuid.UUID) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*scheduling.Appointment, error)
	Complete(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*scheduling.Appointment, error)
	Get(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*scheduling.Appointment, error)
	ListForPrincipal(ctx context.Context, p auth.Principal, limit, offset int) ([]scheduling.Appointment, error)
	ListSlots(ctx context.Context, filter scheduling.SlotFilter, limit int) ([]scheduling.Slot, error)
}

type OrchestratorService interface {
	Run(ctx context.Context, p auth.Principal, req orchestrator.Request) (*orchestrator.Result, error)
}

type QuestionnaireService interface {
	Submit(ctx context.Context, p auth.Principal, req questionnaire.SubmitRequest) (*scheduling.QuestionnaireResponse, error)
	Get(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*scheduling.QuestionnaireResponse, error)
}

type ReminderService interface {
	Schedule(ctx context.Context, appointmentID uuid.UUID, kind scheduling.ReminderType, leadTimeHours int) (*scheduling.Reminder, error)
}
