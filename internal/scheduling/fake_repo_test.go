package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/carebridge/clinic-scheduling/internal/redis"
)

// fakeRepo is an in-memory Repository with the same conditional-write
// semantics as the Postgres implementation. Safe for concurrent use.
type fakeRepo struct {
	mu             sync.Mutex
	patients       map[uuid.UUID]Patient
	doctors        map[uuid.UUID]Doctor
	slots          map[uuid.UUID]*Slot
	appointments   map[uuid.UUID]*Appointment
	reminders      map[uuid.UUID]*Reminder
	questionnaires map[string]*QuestionnaireResponse
	events         []EventLog

	createAppointmentErr error
	updateSlotErr        error
	markAvailableErr     map[uuid.UUID]error

	// updateStatusHook runs before UpdateAppointmentStatus takes the lock, so
	// tests can interleave other operations with a status transition.
	updateStatusHook func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:         make(map[uuid.UUID]Patient),
		doctors:          make(map[uuid.UUID]Doctor),
		slots:            make(map[uuid.UUID]*Slot),
		appointments:     make(map[uuid.UUID]*Appointment),
		reminders:        make(map[uuid.UUID]*Reminder),
		questionnaires:   make(map[string]*QuestionnaireResponse),
		markAvailableErr: make(map[uuid.UUID]error),
	}
}

func (f *fakeRepo) addPatient(name string) Patient {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := Patient{ID: uuid.New(), Name: name}
	f.patients[p.ID] = p
	return p
}

func (f *fakeRepo) addDoctor(name, specialty string) Doctor {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := Doctor{ID: uuid.New(), Name: name, Specialty: specialty}
	f.doctors[d.ID] = d
	return d
}

func (f *fakeRepo) addSlot(doctorID uuid.UUID, date time.Time, clock string, available bool) Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Slot{ID: uuid.New(), DoctorID: doctorID, Date: date, Time: clock, Available: available}
	f.slots[s.ID] = &s
	return s
}

func (f *fakeRepo) slotAvailable(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	return ok && s.Available
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (f *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (f *fakeRepo) ListDoctorsBySpecialty(_ context.Context, specialty string, limit int) ([]Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Doctor
	for _, d := range f.doctors {
		if specialty == "" || d.Specialty == specialty {
			out = append(out, d)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListSlots(_ context.Context, filter SlotFilter, limit int) ([]Slot, error) {
	return f.listSlots(filter, limit, false)
}

func (f *fakeRepo) ListAvailableSlots(_ context.Context, filter SlotFilter, limit int) ([]Slot, error) {
	return f.listSlots(filter, limit, true)
}

func (f *fakeRepo) listSlots(filter SlotFilter, limit int, availableOnly bool) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Slot
	for _, s := range f.slots {
		if availableOnly && !s.Available {
			continue
		}
		if filter.DoctorID != nil && s.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Date != nil && !s.Date.Equal(*filter.Date) {
			continue
		}
		if filter.Specialty != "" {
			d, ok := f.doctors[s.DoctorID]
			if !ok || d.Specialty != filter.Specialty {
				continue
			}
		}
		if filter.NotBefore != nil {
			at, err := s.StartAt()
			if err != nil || at.Before(*filter.NotBefore) {
				continue
			}
		}
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].DoctorID.String() < out[j].DoctorID.String()
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) MarkSlotUnavailable(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || !s.Available {
		return false, nil
	}
	s.Available = false
	return true, nil
}

func (f *fakeRepo) MarkSlotAvailable(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markAvailableErr[id]; err != nil {
		return err
	}
	s, ok := f.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	s.Available = true
	return nil
}

func (f *fakeRepo) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createAppointmentErr != nil {
		return nil, f.createAppointmentErr
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	f.appointments[appt.ID] = &appt
	cp := appt
	return &cp, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	if f.updateStatusHook != nil {
		f.updateStatusHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	matches := false
	for _, s := range from {
		if a.Status == s {
			matches = true
			break
		}
	}
	if !matches {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) UpdateAppointmentSlot(_ context.Context, id uuid.UUID, claim SlotClaim) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateSlotErr != nil {
		return nil, f.updateSlotErr
	}
	a, ok := f.appointments[id]
	if !ok || a.Status != StatusConfirmed {
		return nil, ErrAppointmentNotFound
	}
	a.SlotID = claim.SlotID
	a.DoctorID = claim.DoctorID
	a.Date = claim.Date
	a.Time = claim.Time
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) listAppointments(match func(a Appointment) bool, limit, offset int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []Appointment
	for _, a := range f.appointments {
		if match(*a) {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].Time < all[j].Time
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return f.listAppointments(func(a Appointment) bool { return a.PatientID == patientID }, limit, offset)
}

func (f *fakeRepo) ListAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return f.listAppointments(func(a Appointment) bool { return a.DoctorID == doctorID }, limit, offset)
}

func (f *fakeRepo) ListAppointments(_ context.Context, limit, offset int) ([]Appointment, error) {
	return f.listAppointments(func(Appointment) bool { return true }, limit, offset)
}

func (f *fakeRepo) InsertReminder(_ context.Context, rem Reminder) (*Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rem.ID == uuid.Nil {
		rem.ID = uuid.New()
	}
	f.reminders[rem.ID] = &rem
	cp := rem
	return &cp, nil
}

func (f *fakeRepo) FindDueReminders(_ context.Context, now time.Time, limit int) ([]Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Reminder
	for _, r := range f.reminders {
		if r.Status == ReminderPending && !r.ScheduledAt.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) UpdateReminderStatus(_ context.Context, id uuid.UUID, from, to ReminderStatus) (*Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	if !ok || r.Status != from {
		return nil, ErrReminderNotFound
	}
	r.Status = to
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) UpsertQuestionnaireResponse(_ context.Context, qr QuestionnaireResponse) (*QuestionnaireResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := qr.AppointmentID.String() + "/" + qr.QuestionnaireID
	if existing, ok := f.questionnaires[key]; ok {
		existing.Answers = qr.Answers
		existing.Summary = qr.Summary
		existing.UpdatedAt = time.Now()
		cp := *existing
		return &cp, nil
	}
	if qr.ID == uuid.Nil {
		qr.ID = uuid.New()
	}
	qr.SubmittedAt = time.Now()
	qr.UpdatedAt = qr.SubmittedAt
	f.questionnaires[key] = &qr
	cp := qr
	return &cp, nil
}

func (f *fakeRepo) GetQuestionnaireResponse(_ context.Context, appointmentID uuid.UUID, questionnaireID string) (*QuestionnaireResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questionnaires[appointmentID.String()+"/"+questionnaireID]
	if !ok {
		return nil, ErrQuestionnaireNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeRepo) GetQuestionnaireResponseByAppointment(_ context.Context, appointmentID uuid.UUID) (*QuestionnaireResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.questionnaires {
		if q.AppointmentID == appointmentID {
			cp := *q
			return &cp, nil
		}
	}
	return nil, ErrQuestionnaireNotFound
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepo) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventType
	}
	return out
}

// noopLocker runs the critical section inline. The fake repository's mutex
// already serializes the conditional writes.
type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// heldLocker refuses every acquisition, simulating a contended slot lock.
type heldLocker struct{}

func (heldLocker) WithSlotLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
