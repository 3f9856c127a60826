package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no service matches the given id.
var ErrNotFound = errors.New("service not found")

type Repository interface {
	Create(ctx context.Context, s *BillableService) error
	GetByID(ctx context.Context, id uuid.UUID) (*BillableService, error)
	Update(ctx context.Context, s *BillableService) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*BillableService, int, error)
}
