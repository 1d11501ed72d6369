// Package reminder schedules and dispatches appointment reminders. The
// scheduler records a pending reminder due lead-time hours before the visit;
// the worker sends due reminders through a Sender and records the outcome.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/scheduling"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

type Scheduler struct {
	repo   scheduling.Repository
	logger *logging.Logger
	now    func() time.Time
}

func NewScheduler(repo scheduling.Repository, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		repo:   repo,
		logger: logger.Component("reminder"),
		now:    time.Now,
	}
}

// Schedule records a pending reminder for the appointment, due leadTimeHours
// before the visit. If that instant is already in the past the reminder is
// due immediately rather than dropped.
func (s *Scheduler) Schedule(ctx context.Context, appointmentID uuid.UUID, kind scheduling.ReminderType, leadTimeHours int) (*scheduling.Reminder, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	visitAt, err := scheduling.CombineDateTime(appt.Date, appt.Time)
	if err != nil {
		return nil, fmt.Errorf("appointment %s has invalid time: %w", appointmentID, err)
	}

	scheduledAt := visitAt.Add(-time.Duration(leadTimeHours) * time.Hour)
	if now := s.now().UTC(); scheduledAt.Before(now) {
		scheduledAt = now
	}

	rem, err := s.repo.InsertReminder(ctx, scheduling.Reminder{
		AppointmentID: appointmentID,
		Type:          kind,
		HoursBefore:   leadTimeHours,
		ScheduledAt:   scheduledAt,
		Status:        scheduling.ReminderPending,
	})
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}

	s.logger.Info("reminder scheduled",
		"appointment_id", appointmentID, "type", kind, "scheduled_at", scheduledAt)
	return rem, nil
}
