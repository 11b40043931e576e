package queue

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointments and keeps the waiting queue numbering
// contiguous.
type Repository interface {
	// InsertAt shifts waiting entries at or after position down by one
	// and inserts appt with that queue number, atomically.
	InsertAt(ctx context.Context, appt *Appointment, position int) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListWaiting returns all waiting appointments ordered by queue number.
	ListWaiting(ctx context.Context) ([]*Appointment, error)
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// UpdateQueueState rewrites the derived queue fields on one appointment.
	UpdateQueueState(ctx context.Context, id uuid.UUID, queueNumber int, priority, waitMinutes float64) error
	// Complete marks the appointment completed and closes the gap it
	// leaves in the waiting numbering, atomically. Returns ErrNotFound
	// for an unknown id. Completing an already completed appointment is
	// a no-op that returns the stored row.
	Complete(ctx context.Context, id uuid.UUID) (*Appointment, error)
}

// MessageRepository persists patient notifications.
type MessageRepository interface {
	// Create inserts the message unless one already exists for the
	// appointment. Returns true when a row was actually inserted.
	Create(ctx context.Context, m *Message) (bool, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Message, error)
}
