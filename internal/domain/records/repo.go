package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no medical record matches the given id.
var ErrNotFound = errors.New("medical record not found")

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	Update(ctx context.Context, r *MedicalRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*MedicalRecord, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
}

// Detail is a record joined with the patient it belongs to, served on the
// single-record endpoint.
type Detail struct {
	MedicalRecord
	PatientName string `json:"patient_name"`
	Total       int64  `json:"total"`
}
