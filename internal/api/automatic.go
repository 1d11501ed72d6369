package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/orchestrator"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
)

// automaticBookingHandler runs the booking saga. Failures of the reminder or
// questionnaire steps are reported in the payload, never as an HTTP error;
// only a step-1 failure produces a non-2xx status.
func automaticBookingHandler(svc OrchestratorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var req AutomaticBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		oreq := orchestrator.Request{
			PatientID:         patientID,
			PatientName:       req.PatientName,
			PreferredTime:     req.PreferredTime,
			Condition:         req.Condition,
			Reason:            req.Reason,
			ScheduleReminder:  boolOrDefault(req.ScheduleReminder, true),
			SendQuestionnaire: boolOrDefault(req.SendQuestionnaire, true),
			ReminderType:      scheduling.ReminderType(req.ReminderType),
			LeadTimeHours:     req.LeadTimeHours,
		}

		if req.DoctorID != "" {
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			oreq.DoctorID = &id
		}
		if req.PreferredDate != "" {
			d, err := time.Parse("2006-01-02", req.PreferredDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_preferred_date", "preferred_date must be YYYY-MM-DD")
				return
			}
			oreq.PreferredDate = &d
		}

		result, err := svc.Run(r.Context(), p, oreq)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := AutomaticBookingResponse{
			Success:           result.Success,
			ReminderScheduled: result.ReminderScheduled,
			QuestionnaireSent: result.QuestionnaireSent,
			Trace:             result.Trace,
		}
		if result.Appointment != nil {
			a := toAppointmentResponse(result.Appointment)
			resp.Appointment = &a
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
