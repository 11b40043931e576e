package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medqueue/medqueue/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG builds the Postgres-backed appointment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, symptoms, status, queue_number, triage_priority,
	predicted_wait_minutes, created_at, updated_at`

func (r *repoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.Symptoms, &a.Status, &a.QueueNumber, &a.TriagePriority,
		&a.PredictedWaitMinutes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) InsertAt(ctx context.Context, appt *Appointment, position int) error {
	appt.ID = uuid.New()
	appt.Status = StatusWaiting
	appt.QueueNumber = position
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE appointment SET queue_number = queue_number + 1, updated_at = NOW()
			WHERE status = $1 AND queue_number >= $2`,
			StatusWaiting, position); err != nil {
			return err
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO appointment (id, patient_id, symptoms, status, queue_number, triage_priority, predicted_wait_minutes)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			appt.ID, appt.PatientID, appt.Symptoms, appt.Status, appt.QueueNumber,
			appt.TriagePriority, appt.PredictedWaitMinutes)
		return err
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) ListWaiting(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE status = $1 ORDER BY queue_number`, StatusWaiting)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateQueueState(ctx context.Context, id uuid.UUID, queueNumber int, priority, waitMinutes float64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET queue_number = $2, triage_priority = $3,
			predicted_wait_minutes = $4, updated_at = NOW()
		WHERE id = $1`,
		id, queueNumber, priority, waitMinutes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var completed *Appointment
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		a, err := r.scanAppointment(r.conn(ctx).QueryRow(ctx,
			`SELECT `+apptCols+` FROM appointment WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if a.Status == StatusCompleted {
			completed = a
			return nil
		}
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE appointment SET status = $2, queue_number = 0, updated_at = NOW()
			WHERE id = $1`, id, StatusCompleted); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE appointment SET queue_number = queue_number - 1, updated_at = NOW()
			WHERE status = $1 AND queue_number > $2`,
			StatusWaiting, a.QueueNumber); err != nil {
			return err
		}
		a.Status = StatusCompleted
		a.QueueNumber = 0
		completed = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool *pgxpool.Pool }

// NewMessageRepoPG builds the Postgres-backed message repository.
func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository { return &messageRepoPG{pool: pool} }

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) (bool, error) {
	m.ID = uuid.New()
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO queue_message (id, appointment_id, patient_id, content)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (appointment_id) DO NOTHING`,
		m.ID, m.AppointmentID, m.PatientID, m.Content)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *messageRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, patient_id, content, created_at
		FROM queue_message WHERE appointment_id = $1 ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AppointmentID, &m.PatientID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}
