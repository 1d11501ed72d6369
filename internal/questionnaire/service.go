// Package questionnaire handles pre-visit questionnaire collection. A
// response is keyed on (appointment, questionnaire); resubmission overwrites
// the stored answers so patients can edit until the visit occurs.
package questionnaire

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/auth"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

// DefaultQuestionnaireID names the standard pre-visit form.
const DefaultQuestionnaireID = "previsit"

// DefaultQuestions are the fields of the standard pre-visit form, in display
// order.
var DefaultQuestions = []string{
	"chief_complaint",
	"symptoms",
	"medical_history",
	"current_medications",
	"allergies",
	"additional_notes",
}

type Service struct {
	repo       scheduling.Repository
	summarizer Summarizer
	logger     *logging.Logger
}

func NewService(repo scheduling.Repository, summarizer Summarizer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if summarizer == nil {
		summarizer = PlainTextSummarizer{}
	}
	return &Service{
		repo:       repo,
		summarizer: summarizer,
		logger:     logger.Component("questionnaire"),
	}
}

type SubmitRequest struct {
	AppointmentID   uuid.UUID
	QuestionnaireID string
	Answers         map[string]string
}

// Submit upserts the caller's answers for the appointment's questionnaire.
// Last write wins on resubmission.
func (s *Service) Submit(ctx context.Context, p auth.Principal, req SubmitRequest) (*scheduling.QuestionnaireResponse, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if p.Role == auth.RolePatient && appt.PatientID != p.UserID {
		return nil, scheduling.ErrForbidden
	}

	questionnaireID := req.QuestionnaireID
	if questionnaireID == "" {
		questionnaireID = DefaultQuestionnaireID
	}

	summary := s.summarize(ctx, req.Answers)

	qr, err := s.repo.UpsertQuestionnaireResponse(ctx, scheduling.QuestionnaireResponse{
		AppointmentID:   req.AppointmentID,
		QuestionnaireID: questionnaireID,
		PatientID:       appt.PatientID,
		Answers:         req.Answers,
		Summary:         &summary,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("questionnaire submitted",
		"appointment_id", req.AppointmentID, "questionnaire_id", questionnaireID)
	return qr, nil
}

// Get returns the latest questionnaire response for an appointment,
// enforcing ownership for patient callers.
func (s *Service) Get(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*scheduling.QuestionnaireResponse, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if p.Role == auth.RolePatient && appt.PatientID != p.UserID {
		return nil, scheduling.ErrForbidden
	}

	return s.repo.GetQuestionnaireResponseByAppointment(ctx, appointmentID)
}

// EnsureSent creates the default pre-visit questionnaire for the appointment
// if none exists yet. Idempotent per appointment: a second call leaves an
// existing response (including patient edits) untouched.
func (s *Service) EnsureSent(ctx context.Context, appointmentID, patientID uuid.UUID, defaults map[string]string) (bool, error) {
	existing, err := s.repo.GetQuestionnaireResponse(ctx, appointmentID, DefaultQuestionnaireID)
	if err != nil && !errors.Is(err, scheduling.ErrQuestionnaireNotFound) {
		return false, err
	}
	if existing != nil {
		return true, nil
	}

	answers := make(map[string]string, len(DefaultQuestions))
	for _, q := range DefaultQuestions {
		answers[q] = ""
	}
	for k, v := range defaults {
		answers[k] = v
	}
	if answers["additional_notes"] == "" {
		answers["additional_notes"] = "This questionnaire was generated for you. Please update with your details."
	}

	summary := s.summarize(ctx, answers)

	_, err = s.repo.UpsertQuestionnaireResponse(ctx, scheduling.QuestionnaireResponse{
		AppointmentID:   appointmentID,
		QuestionnaireID: DefaultQuestionnaireID,
		PatientID:       patientID,
		Answers:         answers,
		Summary:         &summary,
	})
	if err != nil {
		return false, err
	}

	s.logger.Info("questionnaire dispatched", "appointment_id", appointmentID)
	return true, nil
}

func (s *Service) summarize(ctx context.Context, answers map[string]string) string {
	summary, err := s.summarizer.Summarize(ctx, answers)
	if err != nil {
		s.logger.Warn("summarizer failed, using plain-text fallback", "error", err)
		summary, _ = PlainTextSummarizer{}.Summarize(ctx, answers)
	}
	return summary
}
