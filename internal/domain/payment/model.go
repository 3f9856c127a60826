package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/records"
)

// Transaction is one payment order submitted to the gateway for a medical
// record. AppTransID is the merchant-side transaction reference
// ("YYMMDD_<suffix>", unique); ZpTransID is the gateway's settlement
// reference, set only once the order is paid.
type Transaction struct {
	ID              uuid.UUID             `db:"id" json:"id"`
	MedicalRecordID uuid.UUID             `db:"medical_record_id" json:"medical_record_id"`
	AppointmentID   uuid.UUID             `db:"appointment_id" json:"appointment_id"`
	Amount          int64                 `db:"amount" json:"amount"`
	AppTransID      string                `db:"app_trans_id" json:"app_trans_id"`
	Mac             string                `db:"mac" json:"mac"`
	ZpTransID       *string               `db:"zp_trans_id" json:"zp_trans_id,omitempty"`
	Status          records.PaymentStatus `db:"status" json:"status"`
	Description     string                `db:"description" json:"description"`
	CreatedAt       time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at" json:"updated_at"`
}
