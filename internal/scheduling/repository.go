package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrSlotNotFound          = errors.New("slot not found")
	ErrAppointmentNotFound   = errors.New("appointment not found")
	ErrQuestionnaireNotFound = errors.New("questionnaire response not found")
	ErrReminderNotFound      = errors.New("reminder not found")
)

// Repository contains all DB interactions needed by the scheduling core.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctorsBySpecialty(ctx context.Context, specialty string, limit int) ([]Doctor, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// ListSlots returns matching slots regardless of availability, ordered by
	// (date, time, doctor_id) ascending.
	ListSlots(ctx context.Context, filter SlotFilter, limit int) ([]Slot, error)
	// ListAvailableSlots is ListSlots restricted to available=true.
	ListAvailableSlots(ctx context.Context, filter SlotFilter, limit int) ([]Slot, error)

	// MarkSlotUnavailable is the allocator's conditional write: it flips
	// available to false only if it is currently true, and reports whether
	// this caller won. Exactly one of N concurrent callers sees true.
	MarkSlotUnavailable(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkSlotAvailable sets available=true. Idempotent; ErrSlotNotFound only
	// when no such slot exists.
	MarkSlotAvailable(ctx context.Context, id uuid.UUID) error

	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus transitions status only when the current status
	// is one of from; ErrAppointmentNotFound when id or precondition misses.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)
	// UpdateAppointmentSlot replaces the captured slot reference and the
	// denormalized date/time; only legal while the appointment is confirmed.
	UpdateAppointmentSlot(ctx context.Context, id uuid.UUID, claim SlotClaim) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error)

	InsertReminder(ctx context.Context, rem Reminder) (*Reminder, error)
	FindDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	UpdateReminderStatus(ctx context.Context, id uuid.UUID, from, to ReminderStatus) (*Reminder, error)

	// UpsertQuestionnaireResponse inserts or, on (appointment, questionnaire)
	// conflict, overwrites answers and summary. Last write wins.
	UpsertQuestionnaireResponse(ctx context.Context, qr QuestionnaireResponse) (*QuestionnaireResponse, error)
	GetQuestionnaireResponse(ctx context.Context, appointmentID uuid.UUID, questionnaireID string) (*QuestionnaireResponse, error)
	GetQuestionnaireResponseByAppointment(ctx context.Context, appointmentID uuid.UUID) (*QuestionnaireResponse, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
