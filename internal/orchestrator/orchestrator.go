// Package orchestrator runs the automatic-booking saga: reserve and create
// the appointment, then schedule a reminder and dispatch the pre-visit
// questionnaire as best-effort steps. Only the booking step decides overall
// success; later step failures never undo the booking.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/auth"
	"github.com/carebridge/clinic-scheduling/internal/observability/metrics"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

// ErrCollaboratorUnavailable marks a best-effort step failure. It is
// recorded in the result, never returned from Run.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// Booking is step 1: reserve a slot and create the appointment.
type Booking interface {
	BookEarliest(ctx context.Context, p auth.Principal, req scheduling.AutoBookRequest) (*scheduling.Appointment, *scheduling.Selection, error)
}

// ReminderScheduler is step 2. Implementations must return an error rather
// than panic; the saga treats any error or timeout as step failure.
type ReminderScheduler interface {
	Schedule(ctx context.Context, appointmentID uuid.UUID, kind scheduling.ReminderType, leadTimeHours int) (*scheduling.Reminder, error)
}

// QuestionnaireDispatcher is step 3. Idempotent per appointment.
type QuestionnaireDispatcher interface {
	EnsureSent(ctx context.Context, appointmentID, patientID uuid.UUID, defaults map[string]string) (bool, error)
}

type Orchestrator struct {
	booking        Booking
	reminders      ReminderScheduler
	questionnaires QuestionnaireDispatcher
	logger         *logging.Logger
	metrics        *metrics.BookingMetrics

	stepTimeout      time.Duration
	defaultLeadHours int
}

func New(
	booking Booking,
	reminders ReminderScheduler,
	questionnaires QuestionnaireDispatcher,
	logger *logging.Logger,
	m *metrics.BookingMetrics,
	stepTimeout time.Duration,
	defaultLeadHours int,
) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	if stepTimeout <= 0 {
		stepTimeout = 3 * time.Second
	}
	if defaultLeadHours <= 0 {
		defaultLeadHours = 24
	}
	return &Orchestrator{
		booking:          booking,
		reminders:        reminders,
		questionnaires:   questionnaires,
		logger:           logger.Component("orchestrator"),
		metrics:          m,
		stepTimeout:      stepTimeout,
		defaultLeadHours: defaultLeadHours,
	}
}

type Request struct {
	PatientID     uuid.UUID
	PatientName   string
	DoctorID      *uuid.UUID
	PreferredDate *time.Time
	PreferredTime string
	Condition     string // condition keyword or specialty name
	Reason        *string

	ScheduleReminder  bool
	SendQuestionnaire bool
	ReminderType      scheduling.ReminderType
	LeadTimeHours     int
}

// Result reports per-step outcomes independently of overall success, so the
// caller can distinguish "booked, reminder failed" from total failure.
type Result struct {
	Success           bool                    `json:"success"`
	Appointment       *scheduling.Appointment `json:"appointment,omitempty"`
	ReminderScheduled bool                    `json:"reminder_scheduled"`
	QuestionnaireSent bool                    `json:"questionnaire_sent"`
	Trace             Trace                   `json:"trace"`
}

// Run executes the saga. The returned error is non-nil only when step 1
// fails; in that case nothing was created and no compensation is needed.
func (o *Orchestrator) Run(ctx context.Context, p auth.Principal, req Request) (*Result, error) {
	start := time.Now()
	defer func() {
		o.metrics.ObserveSagaDuration(time.Since(start).Seconds())
	}()

	res := &Result{}
	specialty := scheduling.SpecialtyForCondition(req.Condition)

	if req.Condition != "" {
		detail := fmt.Sprintf("interpreted condition %q as specialty %q", req.Condition, specialty)
		if specialty == "" {
			detail = fmt.Sprintf("condition %q does not narrow the specialty; considering all doctors", req.Condition)
		}
		res.Trace.Add("resolve_specialty", detail, true)
	}

	// Step 1: reserve + create. Mandatory.
	appt, selection, err := o.booking.BookEarliest(ctx, p, scheduling.AutoBookRequest{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
		Specialty:     specialty,
		Reason:        req.Reason,
	})
	if err != nil {
		o.metrics.ObserveSagaStep("booking", "failed")
		res.Trace.Add("book", "no slot could be reserved: "+err.Error(), false)
		return res, err
	}

	o.metrics.ObserveSagaStep("booking", "ok")
	res.Success = true
	res.Appointment = appt
	res.Trace.Add("book", describeSelection(req.PatientName, appt, selection), true)

	// Step 2: reminder. Best effort; failure never rolls back the booking.
	if req.ScheduleReminder {
		res.ReminderScheduled = o.scheduleReminder(ctx, req, appt, &res.Trace)
	} else {
		res.Trace.Add("reminder", "skipped by request", true)
	}

	// Step 3: questionnaire. Best effort and idempotent.
	if req.SendQuestionnaire {
		res.QuestionnaireSent = o.dispatchQuestionnaire(ctx, req, appt, &res.Trace)
	} else {
		res.Trace.Add("questionnaire", "skipped by request", true)
	}

	return res, nil
}

func (o *Orchestrator) scheduleReminder(ctx context.Context, req Request, appt *scheduling.Appointment, trace *Trace) bool {
	kind := req.ReminderType
	if kind == "" {
		kind = scheduling.ReminderEmail
	}
	lead := req.LeadTimeHours
	if lead <= 0 {
		lead = o.defaultLeadHours
	}

	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	rem, err := o.reminders.Schedule(stepCtx, appt.ID, kind, lead)
	if err != nil {
		o.metrics.ObserveSagaStep("reminder", "failed")
		o.logger.Warn("reminder step failed, booking kept",
			"appointment_id", appt.ID, "error", err)
		trace.Add("reminder", fmt.Sprintf("could not schedule %s reminder: %v", kind, err), false)
		return false
	}

	o.metrics.ObserveSagaStep("reminder", "ok")
	trace.Add("reminder", fmt.Sprintf("%s reminder scheduled for %s (%d hours before the visit)",
		kind, rem.ScheduledAt.Format("2006-01-02 15:04 MST"), lead), true)
	return true
}

func (o *Orchestrator) dispatchQuestionnaire(ctx context.Context, req Request, appt *scheduling.Appointment, trace *Trace) bool {
	defaults := map[string]string{}
	if req.Reason != nil && *req.Reason != "" {
		defaults["chief_complaint"] = *req.Reason
	}

	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	sent, err := o.questionnaires.EnsureSent(stepCtx, appt.ID, appt.PatientID, defaults)
	if err != nil || !sent {
		o.metrics.ObserveSagaStep("questionnaire", "failed")
		o.logger.Warn("questionnaire step failed, booking kept",
			"appointment_id", appt.ID, "error", err)
		detail := "could not dispatch pre-visit questionnaire"
		if err != nil {
			detail += ": " + err.Error()
		}
		trace.Add("questionnaire", detail, false)
		return false
	}

	o.metrics.ObserveSagaStep("questionnaire", "ok")
	detail := "pre-visit questionnaire sent with blank answers"
	if v := defaults["chief_complaint"]; v != "" {
		detail = fmt.Sprintf("pre-visit questionnaire sent, chief complaint pre-filled from the booking reason (%q)", v)
	}
	trace.Add("questionnaire", detail, true)
	return true
}

func describeSelection(patientName string, appt *scheduling.Appointment, sel *scheduling.Selection) string {
	who := "the patient"
	if patientName != "" {
		who = patientName
	}
	if sel == nil {
		return fmt.Sprintf("booked %s at %s for %s", appt.Date.Format("2006-01-02"), appt.Time, who)
	}
	detail := fmt.Sprintf("reserved the earliest matching slot for %s: %s at %s (doctor %s)",
		who, sel.Claim.Date.Format("2006-01-02"), sel.Claim.Time, sel.Claim.DoctorID)
	if n := len(sel.Considered); n > 1 {
		detail += fmt.Sprintf("; %d candidate slots were considered, ties broken by date, time, then doctor", n)
	}
	if sel.SpecialtyRelaxed {
		detail += "; no doctor offers the requested specialty, so all doctors were considered"
	}
	return detail
}
