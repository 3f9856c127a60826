package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) validate(bs *BillableService) error {
	if bs.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bs.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, bs *BillableService) error {
	if err := s.validate(bs); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, bs); err != nil {
		return err
	}
	log.Info().Str("service_id", bs.ID.String()).Str("name", bs.Name).
		Int64("price", bs.Price).Msg("service created")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*BillableService, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, bs *BillableService) error {
	if err := s.validate(bs); err != nil {
		return err
	}
	return s.repo.Update(ctx, bs)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*BillableService, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}
