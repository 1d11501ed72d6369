package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/auth"
	"github.com/carebridge/clinic-scheduling/internal/observability/metrics"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

var (
	ErrForbidden         = errors.New("caller may not act on this appointment")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

// Service owns appointment status transitions. It is the only writer of the
// appointment and slot stores in combination; the allocator is its slot arm.
type Service struct {
	repo    Repository
	alloc   *Allocator
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

func NewService(repo Repository, alloc *Allocator, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		alloc:   alloc,
		logger:  logger.Component("scheduling"),
		metrics: m,
	}
}

// Allocator exposes the slot arm for callers that need direct slot
// operations (the orchestrator's earliest-slot selection).
func (s *Service) Allocator() *Allocator {
	return s.alloc
}

type BookRequest struct {
	SlotID    uuid.UUID
	PatientID uuid.UUID
	Reason    *string
}

// Book reserves the slot and creates a confirmed appointment. On a write
// failure after the reservation the slot claim is rolled back so the slot is
// not stranded unavailable.
func (s *Service) Book(ctx context.Context, p auth.Principal, req BookRequest) (*Appointment, error) {
	if !p.CanActFor(req.PatientID) {
		return nil, ErrForbidden
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	claim, err := s.alloc.Reserve(ctx, req.SlotID, req.PatientID)
	if err != nil {
		s.metrics.ObserveBooking("rejected")
		return nil, err
	}

	appt, err := s.createFromClaim(ctx, claim, req.PatientID, req.Reason)
	if err != nil {
		if relErr := s.alloc.Release(ctx, claim.SlotID); relErr != nil {
			s.logger.Error("compensating release failed", "slot_id", claim.SlotID, "error", relErr)
		}
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	s.metrics.ObserveBooking("booked")
	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"slot_id":    claim.SlotID.String(),
		"patient_id": req.PatientID.String(),
	})

	return appt, nil
}

func (s *Service) createFromClaim(ctx context.Context, claim *SlotClaim, patientID uuid.UUID, reason *string) (*Appointment, error) {
	specialty := claim.Specialty
	appt, err := s.repo.CreateAppointment(ctx, Appointment{
		SlotID:    claim.SlotID,
		PatientID: patientID,
		DoctorID:  claim.DoctorID,
		Date:      claim.Date,
		Time:      claim.Time,
		Status:    StatusConfirmed,
		Reason:    reason,
		Specialty: &specialty,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return appt, nil
}

// Reschedule moves a confirmed appointment to a new slot. The new slot is
// reserved before the old one is released; if the new slot is taken the
// original appointment is untouched.
func (s *Service) Reschedule(ctx context.Context, p auth.Principal, appointmentID, newSlotID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !p.CanActFor(appt.PatientID) {
		return nil, ErrForbidden
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	oldSlotID := appt.SlotID

	claim, err := s.alloc.Swap(ctx, oldSlotID, newSlotID, appt.PatientID)
	if err != nil {
		s.metrics.ObserveReschedule("rejected")
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentSlot(ctx, appointmentID, *claim)
	if err != nil {
		// The swap went through but the appointment row did not move; swap
		// back so the appointment still matches the slot it references.
		if _, swapErr := s.alloc.Swap(ctx, newSlotID, oldSlotID, appt.PatientID); swapErr != nil {
			s.logger.Error("compensating swap failed", "appointment_id", appointmentID, "error", swapErr)
		}
		s.metrics.ObserveReschedule("error")
		return nil, err
	}

	s.metrics.ObserveReschedule("rescheduled")
	s.logEvent(ctx, appointmentID, EventAppointmentRescheduled, map[string]any{
		"old_slot_id": oldSlotID.String(),
		"new_slot_id": newSlotID.String(),
	})

	return updated, nil
}

// Cancel transitions the appointment to cancelled and frees its slot.
// Cancelling an already-cancelled appointment is a silent success.
func (s *Service) Cancel(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !p.CanActFor(appt.PatientID) {
		return nil, ErrForbidden
	}

	switch appt.Status {
	case StatusCancelled:
		return appt, nil
	case StatusCompleted:
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID,
		[]AppointmentStatus{StatusConfirmed, StatusPending}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another cancel; treat like the idempotent case.
			current, getErr := s.repo.GetAppointmentByID(ctx, appointmentID)
			if getErr == nil && current.Status == StatusCancelled {
				return current, nil
			}
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	// Release the slot the status update returned, not the one read before
	// it: a reschedule can move the appointment between the read and the
	// update, and the pre-read slot may already belong to someone else.
	if err := s.alloc.Release(ctx, updated.SlotID); err != nil && !errors.Is(err, ErrSlotNotFound) {
		s.logger.Error("release after cancel failed", "slot_id", updated.SlotID, "error", err)
	}

	s.logEvent(ctx, appointmentID, EventAppointmentCancelled, map[string]any{
		"slot_id": updated.SlotID.String(),
	})

	return updated, nil
}

// Complete marks a confirmed appointment as completed. Administrative; the
// slot is released since the visit has occurred and no live appointment
// references it anymore.
func (s *Service) Complete(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*Appointment, error) {
	if p.Role == auth.RolePatient {
		return nil, ErrForbidden
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID,
		[]AppointmentStatus{StatusConfirmed}, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if err := s.alloc.Release(ctx, updated.SlotID); err != nil && !errors.Is(err, ErrSlotNotFound) {
		s.logger.Error("release after complete failed", "slot_id", updated.SlotID, "error", err)
	}

	s.logEvent(ctx, appointmentID, EventAppointmentCompleted, nil)

	return updated, nil
}

// Get retrieves an appointment, enforcing ownership for patient callers.
func (s *Service) Get(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if p.Role == auth.RolePatient && appt.PatientID != p.UserID {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListForPrincipal returns the appointments visible to the caller: patients
// see their own, doctors see their schedule, admins see everything.
func (s *Service) ListForPrincipal(ctx context.Context, p auth.Principal, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	switch p.Role {
	case auth.RoleDoctor:
		return s.repo.ListAppointmentsByDoctor(ctx, p.UserID, limit, offset)
	case auth.RoleAdmin:
		return s.repo.ListAppointments(ctx, limit, offset)
	default:
		return s.repo.ListAppointmentsByPatient(ctx, p.UserID, limit, offset)
	}
}

// ListSlots returns slots with their availability flags for display.
// Unguarded read; staleness here is cosmetic.
func (s *Service) ListSlots(ctx context.Context, filter SlotFilter, limit int) ([]Slot, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.repo.ListSlots(ctx, filter, limit)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			s.logger.Error("marshal event payload", "event_type", eventType, "error", err)
			data = nil
		}
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}
