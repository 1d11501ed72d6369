package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/carebridge/clinic-scheduling/internal/scheduling"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

// Message is what a Sender delivers: the reminder plus the appointment data
// needed to render it.
type Message struct {
	Reminder    scheduling.Reminder
	Appointment scheduling.Appointment
	Patient     scheduling.Patient
	Doctor      scheduling.Doctor
}

// Sender delivers a reminder over one channel (email, SMS). Transport
// internals are out of scope here; a send error marks the reminder failed.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Worker drains due pending reminders on each run.
type Worker struct {
	repo   scheduling.Repository
	sender Sender
	logger *logging.Logger
}

func NewWorker(repo scheduling.Repository, sender Sender, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		repo:   repo,
		sender: sender,
		logger: logger.Component("reminder-worker"),
	}
}

const dispatchBatch = 100

// RunOnce dispatches all reminders due at now. Each reminder is claimed with
// a conditional pending->sent/failed transition, so two workers never send
// the same reminder twice.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	due, err := w.repo.FindDueReminders(ctx, now, dispatchBatch)
	if err != nil {
		return err
	}

	for _, rem := range due {
		msg, err := w.hydrate(ctx, rem)
		if err != nil {
			w.logger.Error("hydrate reminder", "reminder_id", rem.ID, "error", err)
			w.finish(ctx, rem, scheduling.ReminderFailed)
			continue
		}

		if err := w.sender.Send(ctx, *msg); err != nil {
			w.logger.Error("send reminder", "reminder_id", rem.ID, "error", err)
			w.finish(ctx, rem, scheduling.ReminderFailed)
			continue
		}

		w.finish(ctx, rem, scheduling.ReminderSent)
	}

	return nil
}

// Run executes RunOnce on a ticker until the context is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	w.runOnceLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopping")
			return
		case <-ticker.C:
			w.runOnceLogged(ctx)
		}
	}
}

func (w *Worker) runOnceLogged(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := w.RunOnce(runCtx, start.UTC()); err != nil {
		w.logger.Error("reminder run failed", "error", err)
		return
	}
	w.logger.Debug("reminder run complete", "duration", time.Since(start).String())
}

func (w *Worker) hydrate(ctx context.Context, rem scheduling.Reminder) (*Message, error) {
	appt, err := w.repo.GetAppointmentByID(ctx, rem.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != scheduling.StatusConfirmed {
		return nil, errors.New("appointment no longer confirmed")
	}
	patient, err := w.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}
	doctor, err := w.repo.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	return &Message{Reminder: rem, Appointment: *appt, Patient: *patient, Doctor: *doctor}, nil
}

func (w *Worker) finish(ctx context.Context, rem scheduling.Reminder, to scheduling.ReminderStatus) {
	_, err := w.repo.UpdateReminderStatus(ctx, rem.ID, scheduling.ReminderPending, to)
	if err != nil && !errors.Is(err, scheduling.ErrReminderNotFound) {
		w.logger.Error("update reminder status", "reminder_id", rem.ID, "to", to, "error", err)
	}
}
