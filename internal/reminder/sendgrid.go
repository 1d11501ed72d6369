package reminder

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

// SendGridSender delivers email reminders through SendGrid.
type SendGridSender struct {
	client *sendgrid.Client
	from   string
	logger *logging.Logger
}

func NewSendGridSender(apiKey, from string, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		logger: logger.Component("sendgrid"),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.Patient.Email == nil || *msg.Patient.Email == "" {
		return fmt.Errorf("patient %s has no email address", msg.Patient.ID)
	}

	subject := fmt.Sprintf("Appointment reminder: %s on %s",
		msg.Doctor.Name, msg.Appointment.Date.Format("2006-01-02"))
	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder of your appointment with %s (%s) on %s at %s.\n\nIf you need to reschedule or cancel, please do so before the visit.\n",
		msg.Patient.Name,
		msg.Doctor.Name,
		msg.Doctor.Specialty,
		msg.Appointment.Date.Format("Monday, January 2 2006"),
		msg.Appointment.Time,
	)

	from := mail.NewEmail("Clinic Scheduling", s.from)
	to := mail.NewEmail(msg.Patient.Name, *msg.Patient.Email)
	email := mail.NewSingleEmail(from, subject, to, body, body)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Debug("reminder email sent", "to", *msg.Patient.Email, "status", resp.StatusCode)
	return nil
}

// LogSender is the dev fallback when no SendGrid key is configured: it logs
// the reminder instead of delivering it.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger.Component("log-sender")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("reminder (not delivered, no sender configured)",
		"appointment_id", msg.Appointment.ID,
		"patient", msg.Patient.Name,
		"doctor", msg.Doctor.Name,
		"date", msg.Appointment.Date.Format("2006-01-02"),
		"time", msg.Appointment.Time,
		"type", msg.Reminder.Type,
	)
	return nil
}
