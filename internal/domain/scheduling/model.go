package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment maps to the appointment table. The doctor is denormalized onto
// the appointment the way the clinic front desk records it.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorFirstName string    `db:"doctor_first_name" json:"doctor_first_name"`
	DoctorLastName  string    `db:"doctor_last_name" json:"doctor_last_name"`
	Department      string    `db:"department" json:"department"`
	Date            time.Time `db:"date" json:"date"`
	// IsProcessed is set once a medical record has been filed for this
	// appointment and cleared if that record is deleted.
	IsProcessed bool      `db:"is_processed" json:"is_processed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
