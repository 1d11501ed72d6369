package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/carebridge/clinic-scheduling/internal/redis"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

var (
	ErrSlotUnavailable  = errors.New("slot is no longer available")
	ErrNoMatchingDoctor = errors.New("no doctor matches the requested filters")
)

// Allocator enforces the one-appointment-per-slot invariant. Reserve is a
// single conditional write against the slot row; Swap serializes through a
// per-slot Redis lock on the new slot so reserve-new-then-release-old cannot
// interleave with another swap targeting the same slot.
type Allocator struct {
	repo   Repository
	locker redisclient.Locker
	logger *logging.Logger
}

func NewAllocator(repo Repository, locker redisclient.Locker, logger *logging.Logger) *Allocator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Allocator{
		repo:   repo,
		locker: locker,
		logger: logger.Component("allocator"),
	}
}

// Reserve atomically claims the slot for the patient. Under contention
// exactly one caller succeeds; the rest get ErrSlotUnavailable.
func (a *Allocator) Reserve(ctx context.Context, slotID, patientID uuid.UUID) (*SlotClaim, error) {
	slot, err := a.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	won, err := a.repo.MarkSlotUnavailable(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}
	if !won {
		return nil, ErrSlotUnavailable
	}

	doctor, err := a.repo.GetDoctorByID(ctx, slot.DoctorID)
	if err != nil {
		// Slot without a doctor row is a provisioning bug; undo the claim.
		if relErr := a.repo.MarkSlotAvailable(ctx, slotID); relErr != nil {
			a.logger.Error("rollback of slot claim failed", "slot_id", slotID, "error", relErr)
		}
		return nil, err
	}

	a.logger.Debug("slot reserved", "slot_id", slotID, "patient_id", patientID)

	return &SlotClaim{
		SlotID:    slot.ID,
		DoctorID:  slot.DoctorID,
		Date:      slot.Date,
		Time:      slot.Time,
		Specialty: doctor.Specialty,
	}, nil
}

// Release marks the slot bookable again. Safe to call twice; the second call
// is a no-op, not an error, because cancellation and compensating rollback
// both end up here.
func (a *Allocator) Release(ctx context.Context, slotID uuid.UUID) error {
	if err := a.repo.MarkSlotAvailable(ctx, slotID); err != nil {
		return err
	}
	a.logger.Debug("slot released", "slot_id", slotID)
	return nil
}

// Swap reserves newSlotID before releasing oldSlotID. If the new slot cannot
// be reserved the old slot is untouched and the caller keeps the original
// appointment. Release-then-reserve would transiently open the old slot and
// could strand the patient with nothing.
func (a *Allocator) Swap(ctx context.Context, oldSlotID, newSlotID, patientID uuid.UUID) (*SlotClaim, error) {
	if oldSlotID == newSlotID {
		return nil, ErrSlotUnavailable
	}

	var claim *SlotClaim

	err := a.locker.WithSlotLock(ctx, newSlotID, func(lockCtx context.Context) error {
		c, err := a.Reserve(lockCtx, newSlotID, patientID)
		if err != nil {
			return err
		}

		if err := a.Release(lockCtx, oldSlotID); err != nil {
			// Keep exactly one slot held: give the new one back.
			if relErr := a.repo.MarkSlotAvailable(lockCtx, newSlotID); relErr != nil {
				a.logger.Error("rollback of new slot failed during swap", "slot_id", newSlotID, "error", relErr)
			}
			return fmt.Errorf("release old slot: %w", err)
		}

		claim = c
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return claim, nil
}

// ReserveEarliest picks the earliest available slot matching the filter,
// ties broken by (date, time, doctor id) ascending, and claims it through
// the same conditional write as Reserve. Candidates that lose the race are
// skipped and the next one is tried.
func (a *Allocator) ReserveEarliest(ctx context.Context, filter SlotFilter, patientID uuid.UUID) (*SlotClaim, []Slot, error) {
	const candidateBatch = 10
	const rounds = 3

	var considered []Slot

	for round := 0; round < rounds; round++ {
		candidates, err := a.repo.ListAvailableSlots(ctx, filter, candidateBatch)
		if err != nil {
			return nil, nil, fmt.Errorf("list available slots: %w", err)
		}
		if len(candidates) == 0 {
			break
		}
		if round == 0 {
			considered = candidates
		}

		for _, slot := range candidates {
			claim, err := a.Reserve(ctx, slot.ID, patientID)
			if err != nil {
				if errors.Is(err, ErrSlotUnavailable) || errors.Is(err, ErrSlotNotFound) {
					continue // lost the race, try the next candidate
				}
				return nil, nil, err
			}
			return claim, considered, nil
		}
	}

	return nil, considered, ErrSlotUnavailable
}
