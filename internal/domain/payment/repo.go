package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no transaction matches the given id or
	// transaction reference.
	ErrNotFound = errors.New("payment transaction not found")
	// ErrConflict is returned when a transaction reference already exists.
	ErrConflict = errors.New("duplicate transaction reference")
)

type Repository interface {
	// Create persists a Pending transaction and moves the owning medical
	// record's payment projection to Pending in the same transaction.
	// Returns ErrConflict if the AppTransID is already taken.
	Create(ctx context.Context, t *Transaction) error

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByAppTransID(ctx context.Context, appTransID string) (*Transaction, error)
	List(ctx context.Context, limit, offset int) ([]*Transaction, int, error)
	ListByRecord(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Transaction, int, error)

	// MarkPaid settles the transaction identified by appTransID. The status
	// flip is a conditional update so concurrent duplicate callbacks cannot
	// both transition it, and the medical record projection moves to Paid in
	// the same database transaction. It returns the transaction and whether
	// this call performed the Pending→Paid transition; an already-Paid
	// transaction is returned unchanged with transitioned=false.
	MarkPaid(ctx context.Context, appTransID, zpTransID string) (t *Transaction, transitioned bool, err error)
}
