package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type ReminderType string

const (
	ReminderEmail ReminderType = "email"
	ReminderSMS   ReminderType = "sms"
)

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a bookable (doctor, date, time) unit of capacity. Date holds the
// calendar day at midnight UTC; Time is the 24h clock string "15:04" so that
// lexical ordering matches chronological ordering.
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartAt combines the slot's date and time into a single UTC instant.
func (s Slot) StartAt() (time.Time, error) {
	return CombineDateTime(s.Date, s.Time)
}

// Appointment is a patient's reservation of one slot. SlotID, Date and Time
// are captured at booking/reschedule time, not live foreign keys.
type Appointment struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Status    AppointmentStatus
	Reason    *string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Reminder struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Type          ReminderType
	HoursBefore   int
	ScheduledAt   time.Time
	Status        ReminderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QuestionnaireResponse holds a patient's pre-visit answers. One row per
// (appointment, questionnaire) pair; resubmission overwrites the answers.
type QuestionnaireResponse struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	QuestionnaireID string
	PatientID       uuid.UUID
	Answers         map[string]string
	Summary         *string
	SubmittedAt     time.Time
	UpdatedAt       time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// SlotClaim is the result of a successful reservation: everything the caller
// needs to persist the appointment without re-reading the slot.
type SlotClaim struct {
	SlotID    uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Specialty string
}

// SlotFilter narrows slot queries. Zero values mean "any".
type SlotFilter struct {
	DoctorID  *uuid.UUID
	Date      *time.Time
	Specialty string
	NotBefore *time.Time // exclude slots starting before this instant
}

// CombineDateTime merges a calendar day and a "15:04" clock string.
func CombineDateTime(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot time %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
