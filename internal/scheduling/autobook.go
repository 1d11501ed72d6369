package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/auth"
)

type AutoBookRequest struct {
	PatientID     uuid.UUID
	DoctorID      *uuid.UUID
	PreferredDate *time.Time
	PreferredTime string // "15:04", only meaningful with PreferredDate
	Specialty     string
	Reason        *string
}

// Selection explains which slot was chosen and what was considered.
type Selection struct {
	Claim            SlotClaim
	Considered       []Slot
	SpecialtyRelaxed bool // requested specialty had no doctors, widened to all
}

// BookEarliest reserves the earliest available slot matching the request and
// creates a confirmed appointment. Slot selection goes through the
// allocator's conditional reserve, so it cannot race a concurrent direct
// booking of the same slot.
func (s *Service) BookEarliest(ctx context.Context, p auth.Principal, req AutoBookRequest) (*Appointment, *Selection, error) {
	if !p.CanActFor(req.PatientID) {
		return nil, nil, ErrForbidden
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, nil, err
	}

	filter := SlotFilter{DoctorID: req.DoctorID, Date: req.PreferredDate}

	relaxed := false
	if req.Specialty != "" {
		doctors, err := s.repo.ListDoctorsBySpecialty(ctx, req.Specialty, 1)
		if err != nil {
			return nil, nil, fmt.Errorf("check specialty: %w", err)
		}
		if len(doctors) == 0 {
			if req.DoctorID != nil {
				return nil, nil, ErrNoMatchingDoctor
			}
			// No doctor carries the requested specialty; widen to all rather
			// than fail, matching the manual slot browser's fallback.
			relaxed = true
		} else {
			filter.Specialty = req.Specialty
		}
	}

	// Future slots only; a preferred time narrows within the preferred day.
	notBefore := time.Now().UTC()
	if req.PreferredDate != nil && req.PreferredTime != "" {
		if at, err := CombineDateTime(*req.PreferredDate, req.PreferredTime); err == nil && at.After(notBefore) {
			notBefore = at
		}
	}
	filter.NotBefore = &notBefore

	if req.DoctorID != nil {
		if _, err := s.repo.GetDoctorByID(ctx, *req.DoctorID); err != nil {
			return nil, nil, ErrNoMatchingDoctor
		}
	}

	claim, considered, err := s.alloc.ReserveEarliest(ctx, filter, req.PatientID)
	if err != nil {
		s.metrics.ObserveBooking("rejected")
		return nil, nil, err
	}

	appt, err := s.createFromClaim(ctx, claim, req.PatientID, req.Reason)
	if err != nil {
		if relErr := s.alloc.Release(ctx, claim.SlotID); relErr != nil {
			s.logger.Error("compensating release failed", "slot_id", claim.SlotID, "error", relErr)
		}
		s.metrics.ObserveBooking("error")
		return nil, nil, err
	}

	s.metrics.ObserveBooking("booked")
	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"slot_id":    claim.SlotID.String(),
		"patient_id": req.PatientID.String(),
		"automatic":  true,
	})

	return appt, &Selection{Claim: *claim, Considered: considered, SpecialtyRelaxed: relaxed}, nil
}
