package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-scheduling/internal/auth"
)

func newTestService(repo *fakeRepo) *Service {
	alloc := NewAllocator(repo, noopLocker{}, nil)
	return NewService(repo, alloc, nil, nil)
}

func asPatient(p Patient) auth.Principal {
	return auth.Principal{UserID: p.ID, Name: p.Name, Role: auth.RolePatient}
}

func adminPrincipal() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Name: "front desk", Role: auth.RoleAdmin}
}

func TestService_Book_CreatesConfirmedAppointment(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", true)
	patient := repo.addPatient("Ana")

	svc := newTestService(repo)

	appt, err := svc.Book(context.Background(), asPatient(patient), BookRequest{
		SlotID:    slot.ID,
		PatientID: patient.ID,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", appt.Status)
	}
	if appt.SlotID != slot.ID || appt.DoctorID != doctor.ID {
		t.Errorf("appointment references wrong slot/doctor: %+v", appt)
	}
	if appt.Specialty == nil || *appt.Specialty != "Cardiology" {
		t.Errorf("specialty not captured: %v", appt.Specialty)
	}
	if repo.slotAvailable(slot.ID) {
		t.Error("booked slot should be unavailable")
	}

	types := repo.eventTypes()
	if len(types) != 1 || types[0] != EventAppointmentBooked {
		t.Errorf("events = %v, want [%s]", types, EventAppointmentBooked)
	}
}

func TestService_Book_TakenSlotConflicts(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", false)
	patient := repo.addPatient("Ana")

	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), asPatient(patient), BookRequest{
		SlotID:    slot.ID,
		PatientID: patient.ID,
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestService_Book_ForbiddenForOtherPatient(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", true)
	owner := repo.addPatient("Ana")
	other := repo.addPatient("Mallory")

	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), asPatient(other), BookRequest{
		SlotID:    slot.ID,
		PatientID: owner.ID,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if !repo.slotAvailable(slot.ID) {
		t.Error("slot must not be touched on a forbidden booking")
	}
}

func TestService_Book_AdminBooksForPatient(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", true)
	patient := repo.addPatient("Ana")

	svc := newTestService(repo)

	appt, err := svc.Book(context.Background(), adminPrincipal(), BookRequest{
		SlotID:    slot.ID,
		PatientID: patient.ID,
	})
	if err != nil {
		t.Fatalf("admin book: %v", err)
	}
	if appt.PatientID != patient.ID {
		t.Errorf("appointment patient = %s, want %s", appt.PatientID, patient.ID)
	}
}

func TestService_Book_UnknownPatient(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", true)

	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), adminPrincipal(), BookRequest{
		SlotID:    slot.ID,
		PatientID: uuid.New(),
	})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
	if !repo.slotAvailable(slot.ID) {
		t.Error("slot must stay available when the patient does not exist")
	}
}

func TestService_Book_RollsBackClaimOnCreateFailure(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", true)
	patient := repo.addPatient("Ana")
	repo.createAppointmentErr = errors.New("insert failed")

	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), asPatient(patient), BookRequest{
		SlotID:    slot.ID,
		PatientID: patient.ID,
	})
	if err == nil {
		t.Fatal("expected booking to fail")
	}
	if !repo.slotAvailable(slot.ID) {
		t.Error("slot claim must be rolled back when the appointment insert fails")
	}
}

func bookFixture(t *testing.T, repo *fakeRepo, svc *Service) (Patient, Slot, *Appointment) {
	t.Helper()
	doctor := repo.addDoctor("Dr. Chen", "Cardiology")
	slot := repo.addSlot(doctor.ID, day(1), "09:00", true)
	patient := repo.addPatient("Ana")

	appt, err := svc.Book(context.Background(), asPatient(patient), BookRequest{
		SlotID:    slot.ID,
		PatientID: patient.ID,
	})
	if err != nil {
		t.Fatalf("book fixture: %v", err)
	}
	return patient, slot, appt
}

func TestService_Cancel_FreesSlotForRebooking(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, slot, appt := bookFixture(t, repo, svc)

	cancelled, err := svc.Cancel(context.Background(), asPatient(patient), appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if !repo.slotAvailable(slot.ID) {
		t.Fatal("cancelled appointment must free its slot")
	}

	// Someone else can book the freed slot.
	other := repo.addPatient("Ben")
	if _, err := svc.Book(context.Background(), asPatient(other), BookRequest{
		SlotID:    slot.ID,
		PatientID: other.ID,
	}); err != nil {
		t.Fatalf("rebooking the freed slot: %v", err)
	}
}

func TestService_Cancel_AlreadyCancelledIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, _, appt := bookFixture(t, repo, svc)

	if _, err := svc.Cancel(context.Background(), asPatient(patient), appt.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	second, err := svc.Cancel(context.Background(), asPatient(patient), appt.ID)
	if err != nil {
		t.Fatalf("second cancel should succeed silently, got: %v", err)
	}
	if second.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", second.Status)
	}
}

func TestService_Cancel_CompletedRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, _, appt := bookFixture(t, repo, svc)

	if _, err := svc.Complete(context.Background(), adminPrincipal(), appt.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := svc.Cancel(context.Background(), asPatient(patient), appt.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_Cancel_ForbiddenForOtherPatient(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, _, appt := bookFixture(t, repo, svc)
	other := repo.addPatient("Mallory")

	_, err := svc.Cancel(context.Background(), asPatient(other), appt.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Complete_PatientForbidden(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, _, appt := bookFixture(t, repo, svc)

	_, err := svc.Complete(context.Background(), asPatient(patient), appt.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for patient-initiated complete, got %v", err)
	}
}

func TestService_Complete_ReleasesSlot(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, slot, appt := bookFixture(t, repo, svc)

	done, err := svc.Complete(context.Background(), adminPrincipal(), appt.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if !repo.slotAvailable(slot.ID) {
		t.Error("completed appointment should free its slot")
	}

	// Completed is terminal.
	if _, err := svc.Complete(context.Background(), adminPrincipal(), appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on repeat complete, got %v", err)
	}
}

func TestService_Reschedule_MovesToNewSlot(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, oldSlot, appt := bookFixture(t, repo, svc)

	doctor2 := repo.addDoctor("Dr. Okafor", "Cardiology")
	newSlot := repo.addSlot(doctor2.ID, day(2), "15:00", true)

	updated, err := svc.Reschedule(context.Background(), asPatient(patient), appt.ID, newSlot.ID)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if updated.SlotID != newSlot.ID {
		t.Errorf("slot = %s, want %s", updated.SlotID, newSlot.ID)
	}
	if updated.Time != "15:00" || !updated.Date.Equal(day(2)) {
		t.Errorf("schedule not updated: %+v", updated)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
	if !repo.slotAvailable(oldSlot.ID) {
		t.Error("old slot should be free after reschedule")
	}
	if repo.slotAvailable(newSlot.ID) {
		t.Error("new slot should be held after reschedule")
	}
}

func TestService_Reschedule_NewSlotTakenKeepsOriginal(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, oldSlot, appt := bookFixture(t, repo, svc)

	doctor2 := repo.addDoctor("Dr. Okafor", "Cardiology")
	newSlot := repo.addSlot(doctor2.ID, day(2), "15:00", false)

	_, err := svc.Reschedule(context.Background(), asPatient(patient), appt.ID, newSlot.ID)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	current, err := svc.Get(context.Background(), asPatient(patient), appt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.SlotID != oldSlot.ID {
		t.Error("appointment must keep its original slot when the reschedule fails")
	}
	if repo.slotAvailable(oldSlot.ID) {
		t.Error("original slot must still be held")
	}
}

func TestService_Reschedule_RowUpdateFailureSwapsBack(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, oldSlot, appt := bookFixture(t, repo, svc)

	doctor2 := repo.addDoctor("Dr. Okafor", "Cardiology")
	newSlot := repo.addSlot(doctor2.ID, day(2), "15:00", true)
	repo.updateSlotErr = errors.New("update failed")

	_, err := svc.Reschedule(context.Background(), asPatient(patient), appt.ID, newSlot.ID)
	if err == nil {
		t.Fatal("expected reschedule to fail")
	}
	if repo.slotAvailable(oldSlot.ID) {
		t.Error("old slot must be re-held after the compensating swap")
	}
	if !repo.slotAvailable(newSlot.ID) {
		t.Error("new slot must be freed after the compensating swap")
	}
}

func TestService_Reschedule_CancelledRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, _, appt := bookFixture(t, repo, svc)

	doctor2 := repo.addDoctor("Dr. Okafor", "Cardiology")
	newSlot := repo.addSlot(doctor2.ID, day(2), "15:00", true)

	if _, err := svc.Cancel(context.Background(), asPatient(patient), appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.Reschedule(context.Background(), asPatient(patient), appt.ID, newSlot.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_Get_OwnershipEnforced(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, _, appt := bookFixture(t, repo, svc)
	other := repo.addPatient("Mallory")

	if _, err := svc.Get(context.Background(), asPatient(patient), appt.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
	if _, err := svc.Get(context.Background(), asPatient(other), appt.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for other patient, got %v", err)
	}
	if _, err := svc.Get(context.Background(), adminPrincipal(), appt.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}
}

func TestService_ListForPrincipal_RoleScoped(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	docA := repo.addDoctor("Dr. A", "Cardiology")
	docB := repo.addDoctor("Dr. B", "Dermatology")
	pA := repo.addPatient("Ana")
	pB := repo.addPatient("Ben")

	slots := []Slot{
		repo.addSlot(docA.ID, day(1), "09:00", true),
		repo.addSlot(docA.ID, day(1), "09:30", true),
		repo.addSlot(docB.ID, day(1), "10:00", true),
	}
	owners := []Patient{pA, pA, pB}
	for i, s := range slots {
		if _, err := svc.Book(context.Background(), asPatient(owners[i]), BookRequest{SlotID: s.ID, PatientID: owners[i].ID}); err != nil {
			t.Fatalf("book %d: %v", i, err)
		}
	}

	mine, err := svc.ListForPrincipal(context.Background(), asPatient(pA), 10, 0)
	if err != nil {
		t.Fatalf("patient list: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("patient sees %d appointments, want 2", len(mine))
	}

	schedule, err := svc.ListForPrincipal(context.Background(), auth.Principal{UserID: docB.ID, Role: auth.RoleDoctor}, 10, 0)
	if err != nil {
		t.Fatalf("doctor list: %v", err)
	}
	if len(schedule) != 1 {
		t.Errorf("doctor sees %d appointments, want 1", len(schedule))
	}

	all, err := svc.ListForPrincipal(context.Background(), adminPrincipal(), 10, 0)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("admin sees %d appointments, want 3", len(all))
	}
}

func TestService_Cancel_ReleasesSlotMovedByConcurrentReschedule(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, slotA, appt := bookFixture(t, repo, svc)

	doctor := repo.addDoctor("Dr. Ruiz", "Cardiology")
	slotB := repo.addSlot(doctor.ID, day(1), "10:00", true)
	rival := repo.addPatient("Bea")

	// Between Cancel's read of the appointment and its status update, the
	// appointment moves to slot B and another patient takes the freed slot A.
	repo.updateStatusHook = func() {
		repo.updateStatusHook = nil
		if _, err := svc.Reschedule(context.Background(), asPatient(patient), appt.ID, slotB.ID); err != nil {
			t.Fatalf("interleaved reschedule: %v", err)
		}
		if _, err := svc.Book(context.Background(), asPatient(rival), BookRequest{
			SlotID:    slotA.ID,
			PatientID: rival.ID,
		}); err != nil {
			t.Fatalf("interleaved booking: %v", err)
		}
	}

	cancelled, err := svc.Cancel(context.Background(), asPatient(patient), appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.SlotID != slotB.ID {
		t.Errorf("cancelled appointment references slot %s, want %s", cancelled.SlotID, slotB.ID)
	}
	if repo.slotAvailable(slotA.ID) {
		t.Error("slot A was released although another confirmed appointment holds it")
	}
	if !repo.slotAvailable(slotB.ID) {
		t.Error("slot B was not released although the appointment holding it was cancelled")
	}
}

func TestService_Complete_ReleasesSlotMovedByConcurrentReschedule(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	patient, slotA, appt := bookFixture(t, repo, svc)

	doctor := repo.addDoctor("Dr. Ruiz", "Cardiology")
	slotB := repo.addSlot(doctor.ID, day(1), "10:00", true)
	rival := repo.addPatient("Bea")

	repo.updateStatusHook = func() {
		repo.updateStatusHook = nil
		if _, err := svc.Reschedule(context.Background(), asPatient(patient), appt.ID, slotB.ID); err != nil {
			t.Fatalf("interleaved reschedule: %v", err)
		}
		if _, err := svc.Book(context.Background(), asPatient(rival), BookRequest{
			SlotID:    slotA.ID,
			PatientID: rival.ID,
		}); err != nil {
			t.Fatalf("interleaved booking: %v", err)
		}
	}

	completed, err := svc.Complete(context.Background(), adminPrincipal(), appt.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.SlotID != slotB.ID {
		t.Errorf("completed appointment references slot %s, want %s", completed.SlotID, slotB.ID)
	}
	if repo.slotAvailable(slotA.ID) {
		t.Error("slot A was released although another confirmed appointment holds it")
	}
	if !repo.slotAvailable(slotB.ID) {
		t.Error("slot B was not released after completion")
	}
}
