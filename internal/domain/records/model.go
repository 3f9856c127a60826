package records

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks where a medical record's bill stands. It is a
// projection of the payment transaction state: Pending once an order has
// been submitted to the gateway, Paid only after a verified callback.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid:
		return true
	}
	return false
}

// Prescription is one medicine line on a record.
type Prescription struct {
	Medicine string `json:"medicine"`
	Dosage   string `json:"dosage"`
	Duration string `json:"duration"`
}

// ServiceLine is a billed service on a record. Name and Price are
// snapshotted from the catalog when the record is written, so later price
// changes never alter an existing bill.
type ServiceLine struct {
	ServiceID uuid.UUID `json:"service_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
}

// MedicalRecord is the examination outcome for one appointment.
// Prescriptions and Services are stored as jsonb.
type MedicalRecord struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	AppointmentID   uuid.UUID      `db:"appointment_id" json:"appointment_id"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patient_id"`
	ExaminationDate time.Time      `db:"examination_date" json:"examination_date"`
	DoctorFirstName string         `db:"doctor_first_name" json:"doctor_first_name"`
	DoctorLastName  string         `db:"doctor_last_name" json:"doctor_last_name"`
	Department      string         `db:"department" json:"department"`
	Diagnosis       string         `db:"diagnosis" json:"diagnosis"`
	Prescriptions   []Prescription `db:"prescriptions" json:"prescriptions"`
	Services        []ServiceLine  `db:"services" json:"services"`
	PaymentStatus   PaymentStatus  `db:"payment_status" json:"payment_status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Total is the amount owed for the record in VND.
func (r *MedicalRecord) Total() int64 {
	var sum int64
	for _, l := range r.Services {
		sum += l.Price * int64(l.Quantity)
	}
	return sum
}
