package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinic/clinic/internal/domain/catalog"
	"github.com/clinic/clinic/internal/domain/scheduling"
)

// ErrAppointmentNotFound is returned when a record references a missing
// appointment.
var ErrAppointmentNotFound = errors.New("appointment not found")

// AppointmentStore is the slice of the scheduling repository the record
// service needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	SetProcessed(ctx context.Context, id uuid.UUID, processed bool) error
}

// ServiceCatalog resolves billable services for line validation.
type ServiceCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.BillableService, error)
}

type Service struct {
	repo     Repository
	appts    AppointmentStore
	services ServiceCatalog
}

func NewService(repo Repository, appts AppointmentStore, services ServiceCatalog) *Service {
	return &Service{repo: repo, appts: appts, services: services}
}

// resolveLines checks every service line against the catalog and snapshots
// the current name and price onto the line.
func (s *Service) resolveLines(ctx context.Context, lines []ServiceLine) error {
	for i := range lines {
		if lines[i].Quantity <= 0 {
			return fmt.Errorf("service line %d: quantity must be positive", i)
		}
		bs, err := s.services.GetByID(ctx, lines[i].ServiceID)
		if err != nil {
			return fmt.Errorf("service line %d: unknown service %s", i, lines[i].ServiceID)
		}
		if !bs.IsActive {
			return fmt.Errorf("service line %d: service %q is not active", i, bs.Name)
		}
		lines[i].Name = bs.Name
		lines[i].Price = bs.Price
	}
	return nil
}

func (s *Service) Create(ctx context.Context, m *MedicalRecord) error {
	appt, err := s.appts.GetByID(ctx, m.AppointmentID)
	if err != nil {
		return ErrAppointmentNotFound
	}
	if err := s.resolveLines(ctx, m.Services); err != nil {
		return err
	}
	m.PatientID = appt.PatientID
	m.PaymentStatus = PaymentUnpaid
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	if err := s.appts.SetProcessed(ctx, m.AppointmentID, true); err != nil {
		log.Error().Err(err).Str("appointment_id", m.AppointmentID.String()).
			Msg("failed to mark appointment processed")
	}
	log.Info().Str("record_id", m.ID.String()).
		Str("appointment_id", m.AppointmentID.String()).
		Int64("total", m.Total()).
		Msg("medical record created")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *MedicalRecord) error {
	existing, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if err := s.resolveLines(ctx, m.Services); err != nil {
		return err
	}
	// The appointment link and payment projection never change on edit.
	m.AppointmentID = existing.AppointmentID
	m.PatientID = existing.PatientID
	m.PaymentStatus = existing.PaymentStatus
	return s.repo.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.appts.SetProcessed(ctx, m.AppointmentID, false); err != nil {
		log.Error().Err(err).Str("appointment_id", m.AppointmentID.String()).
			Msg("failed to reset appointment processed flag")
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid payment status %q", status)
	}
	return s.repo.SetPaymentStatus(ctx, id, status)
}
