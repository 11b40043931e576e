// Package patient manages patient records and their current symptom
// reports.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Symptoms holds the latest intake
// report and feeds triage scoring when the patient joins the queue.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Symptoms  []string   `db:"symptoms" json:"symptoms"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
