package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it
// in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.Time,
		&s.Available,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reason, specialty *string

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Status,
		&reason,
		&specialty,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Reason = reason
	a.Specialty = specialty
	return &a, nil
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.Type,
		&r.HoursBefore,
		&r.ScheduledAt,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}

	return &r, nil
}

func scanQuestionnaireResponse(row pgx.Row) (*QuestionnaireResponse, error) {
	var q QuestionnaireResponse
	var summary *string

	err := row.Scan(
		&q.ID,
		&q.AppointmentID,
		&q.QuestionnaireID,
		&q.PatientID,
		&q.Answers,
		&summary,
		&q.SubmittedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionnaireNotFound
		}
		return nil, err
	}

	q.Summary = summary
	return &q, nil
}

const appointmentColumns = "id, slot_id, patient_id, doctor_id, date, time, status, reason, specialty, created_at, updated_at"

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctorsBySpecialty(ctx context.Context, specialty string, limit int) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE ($1 = '' OR specialty = $1)
		ORDER BY name
		LIMIT $2
	`, specialty, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, date, time, available, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, filter SlotFilter, limit int) ([]Slot, error) {
	return r.listSlots(ctx, filter, limit, false)
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, filter SlotFilter, limit int) ([]Slot, error) {
	return r.listSlots(ctx, filter, limit, true)
}

func (r *PgRepository) listSlots(ctx context.Context, filter SlotFilter, limit int, availableOnly bool) ([]Slot, error) {
	query := `
		SELECT s.id, s.doctor_id, s.date, s.time, s.available, s.created_at, s.updated_at
		FROM slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE 1=1`
	args := []any{}

	if availableOnly {
		query += " AND s.available = true"
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		query += " AND s.doctor_id = $" + strconv.Itoa(len(args))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		query += " AND s.date = $" + strconv.Itoa(len(args))
	}
	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		query += " AND d.specialty = $" + strconv.Itoa(len(args))
	}
	if filter.NotBefore != nil {
		args = append(args, filter.NotBefore.Truncate(24*time.Hour), filter.NotBefore.Format("15:04"))
		query += fmt.Sprintf(" AND (s.date > $%d OR (s.date = $%d AND s.time >= $%d))",
			len(args)-1, len(args)-1, len(args))
	}

	args = append(args, limit)
	query += " ORDER BY s.date, s.time, s.doctor_id LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// MarkSlotUnavailable is a single conditional write so that under contention
// exactly one caller observes rowsAffected==1.
func (r *PgRepository) MarkSlotUnavailable(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET available = false,
		    updated_at = now()
		WHERE id = $1
		  AND available = true
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark slot unavailable: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) MarkSlotAvailable(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET available = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark slot available: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, doctor_id, date, time, status, reason, specialty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.SlotID, appt.PatientID, appt.DoctorID, appt.Date, appt.Time, appt.Status, appt.Reason, appt.Specialty)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, to, statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentSlot(ctx context.Context, id uuid.UUID, claim SlotClaim) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET slot_id = $2,
		    doctor_id = $3,
		    date = $4,
		    time = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'confirmed'
		RETURNING `+appointmentColumns+`
	`, id, claim.SlotID, claim.DoctorID, claim.Date, claim.Time)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date, time
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY date, time
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY date, time
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertReminder(ctx context.Context, rem Reminder) (*Reminder, error) {
	id := rem.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reminders (id, appointment_id, type, hours_before, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, appointment_id, type, hours_before, scheduled_at, status, created_at, updated_at
	`, id, rem.AppointmentID, rem.Type, rem.HoursBefore, rem.ScheduledAt, rem.Status)

	return scanReminder(row)
}

func (r *PgRepository) FindDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, type, hours_before, scheduled_at, status, created_at, updated_at
		FROM reminders
		WHERE status = 'pending'
		  AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rem)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateReminderStatus(ctx context.Context, id uuid.UUID, from, to ReminderStatus) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminders
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, appointment_id, type, hours_before, scheduled_at, status, created_at, updated_at
	`, id, to, from)

	return scanReminder(row)
}

func (r *PgRepository) UpsertQuestionnaireResponse(ctx context.Context, qr QuestionnaireResponse) (*QuestionnaireResponse, error) {
	id := qr.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO questionnaire_responses (id, appointment_id, questionnaire_id, patient_id, answers, summary, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (appointment_id, questionnaire_id)
		DO UPDATE SET answers = EXCLUDED.answers,
		              summary = EXCLUDED.summary,
		              updated_at = now()
		RETURNING id, appointment_id, questionnaire_id, patient_id, answers, summary, submitted_at, updated_at
	`, id, qr.AppointmentID, qr.QuestionnaireID, qr.PatientID, qr.Answers, qr.Summary)

	return scanQuestionnaireResponse(row)
}

func (r *PgRepository) GetQuestionnaireResponse(ctx context.Context, appointmentID uuid.UUID, questionnaireID string) (*QuestionnaireResponse, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, questionnaire_id, patient_id, answers, summary, submitted_at, updated_at
		FROM questionnaire_responses
		WHERE appointment_id = $1 AND questionnaire_id = $2
	`, appointmentID, questionnaireID)
	return scanQuestionnaireResponse(row)
}

func (r *PgRepository) GetQuestionnaireResponseByAppointment(ctx context.Context, appointmentID uuid.UUID) (*QuestionnaireResponse, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, questionnaire_id, patient_id, answers, summary, submitted_at, updated_at
		FROM questionnaire_responses
		WHERE appointment_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, appointmentID)
	return scanQuestionnaireResponse(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func statusStrings(from []AppointmentStatus) []string {
	out := make([]string, len(from))
	for i, s := range from {
		out[i] = string(s)
	}
	return out
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
