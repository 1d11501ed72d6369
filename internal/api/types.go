package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/orchestrator"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	SlotID    string  `json:"slot_id"`
	PatientID string  `json:"patient_id"`
	Reason    *string `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	NewSlotID string `json:"new_slot_id"`
}

type AutomaticBookingRequest struct {
	PatientID         string  `json:"patient_id"`
	PatientName       string  `json:"patient_name"`
	DoctorID          string  `json:"doctor_id,omitempty"`
	PreferredDate     string  `json:"preferred_date,omitempty"` // YYYY-MM-DD
	PreferredTime     string  `json:"preferred_time,omitempty"` // 15:04
	Condition         string  `json:"condition,omitempty"`
	Reason            *string `json:"reason,omitempty"`
	ScheduleReminder  *bool   `json:"auto_schedule_reminder,omitempty"`
	SendQuestionnaire *bool   `json:"auto_send_questionnaire,omitempty"`
	ReminderType      string  `json:"reminder_type,omitempty"`
	LeadTimeHours     int     `json:"lead_time_hours,omitempty"`
}

type ScheduleReminderRequest struct {
	AppointmentID string `json:"appointment_id"`
	Type          string `json:"type,omitempty"`
	HoursBefore   int    `json:"hours_before,omitempty"`
}

type SubmitQuestionnaireRequest struct {
	AppointmentID   string            `json:"appointment_id"`
	QuestionnaireID string            `json:"questionnaire_id,omitempty"`
	Answers         map[string]string `json:"answers"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    string    `json:"status"`
	Reason    *string   `json:"reason,omitempty"`
	Specialty *string   `json:"specialty,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		SlotID:    a.SlotID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date.Format("2006-01-02"),
		Time:      a.Time,
		Status:    string(a.Status),
		Reason:    a.Reason,
		Specialty: a.Specialty,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Available bool      `json:"is_available"`
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format("2006-01-02"),
		Time:      s.Time,
		Available: s.Available,
	}
}

type AutomaticBookingResponse struct {
	Success           bool                 `json:"success"`
	Appointment       *AppointmentResponse `json:"appointment,omitempty"`
	ReminderScheduled bool                 `json:"reminder_scheduled"`
	QuestionnaireSent bool                 `json:"questionnaire_sent"`
	Trace             orchestrator.Trace   `json:"agent_trace"`
}

type ReminderResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Type          string    `json:"type"`
	HoursBefore   int       `json:"hours_before"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        string    `json:"status"`
}

type QuestionnaireResponseBody struct {
	ID              uuid.UUID         `json:"id"`
	AppointmentID   uuid.UUID         `json:"appointment_id"`
	QuestionnaireID string            `json:"questionnaire_id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	Answers         map[string]string `json:"answers"`
	Summary         *string           `json:"summary,omitempty"`
	SubmittedAt     time.Time         `json:"submitted_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toQuestionnaireResponse(q *scheduling.QuestionnaireResponse) QuestionnaireResponseBody {
	return QuestionnaireResponseBody{
		ID:              q.ID,
		AppointmentID:   q.AppointmentID,
		QuestionnaireID: q.QuestionnaireID,
		PatientID:       q.PatientID,
		Answers:         q.Answers,
		Summary:         q.Summary,
		SubmittedAt:     q.SubmittedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
