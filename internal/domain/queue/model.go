// Package queue implements the triage-ordered patient queue: scoring,
// placement, wait estimation and completion.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusWaiting   = "waiting"
	StatusCompleted = "completed"
)

// Appointment maps to the appointment table. QueueNumber is 1-based and
// only meaningful while Status is waiting.
type Appointment struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	PatientID            uuid.UUID `db:"patient_id" json:"patient_id"`
	Symptoms             []string  `db:"symptoms" json:"symptoms"`
	Status               string    `db:"status" json:"status"`
	QueueNumber          int       `db:"queue_number" json:"queue_number"`
	TriagePriority       float64   `db:"triage_priority" json:"triage_priority"`
	PredictedWaitMinutes float64   `db:"predicted_wait_minutes" json:"predicted_wait_minutes"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Message maps to the queue_message table. At most one message exists
// per appointment, enforced by a unique constraint.
type Message struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	Content       string    `db:"content" json:"content"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// allowedSymptoms is the accepted intake vocabulary.
var allowedSymptoms = map[string]struct{}{
	"fever":                {},
	"cough":                {},
	"fatigue":              {},
	"nausea":               {},
	"headache":             {},
	"sore_throat":          {},
	"shortness_of_breath":  {},
	"chest_pain":           {},
	"congestion":           {},
	"vomiting":             {},
	"diarrhea":             {},
	"unconscious":          {},
	"difficulty_breathing": {},
	"other":                {},
}

// IsAllowedSymptom reports whether s (already normalized to lower case)
// belongs to the intake vocabulary.
func IsAllowedSymptom(s string) bool {
	_, ok := allowedSymptoms[s]
	return ok
}
