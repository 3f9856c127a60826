package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service carries the booking rules for appointments.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.DoctorFirstName == "" && a.DoctorLastName == "" {
		return fmt.Errorf("doctor name is required")
	}
	if a.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	log.Info().Str("appointment_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Msg("appointment created")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// MarkProcessed flags an appointment once a medical record has been filed
// against it; ResetProcessed undoes that when the record is removed.
func (s *Service) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetProcessed(ctx, id, true)
}

func (s *Service) ResetProcessed(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetProcessed(ctx, id, false)
}
