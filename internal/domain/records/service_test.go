package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/catalog"
	"github.com/clinic/clinic/internal/domain/scheduling"
)

// -- Mocks --

type mockRepo struct {
	items map[uuid.UUID]*MedicalRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*MedicalRecord)}
}

func (m *mockRepo) Create(_ context.Context, r *MedicalRecord) error {
	r.ID = uuid.New()
	if r.PaymentStatus == "" {
		r.PaymentStatus = PaymentUnpaid
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()
	m.items[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *mockRepo) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	r, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{MedicalRecord: *r, PatientName: "Test Patient", Total: r.Total()}, nil
}

func (m *mockRepo) Update(_ context.Context, r *MedicalRecord) error {
	if _, ok := m.items[r.ID]; !ok {
		return ErrNotFound
	}
	m.items[r.ID] = r
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*MedicalRecord, int, error) {
	var result []*MedicalRecord
	for _, r := range m.items {
		result = append(result, r)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var result []*MedicalRecord
	for _, r := range m.items {
		if r.PatientID == patientID {
			result = append(result, r)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) SetPaymentStatus(_ context.Context, id uuid.UUID, status PaymentStatus) error {
	r, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	r.PaymentStatus = status
	return nil
}

type mockAppts struct {
	items map[uuid.UUID]*scheduling.Appointment
}

func (m *mockAppts) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, scheduling.ErrNotFound
	}
	return a, nil
}

func (m *mockAppts) SetProcessed(_ context.Context, id uuid.UUID, processed bool) error {
	a, ok := m.items[id]
	if !ok {
		return scheduling.ErrNotFound
	}
	a.IsProcessed = processed
	return nil
}

type mockCatalog struct {
	items map[uuid.UUID]*catalog.BillableService
}

func (m *mockCatalog) GetByID(_ context.Context, id uuid.UUID) (*catalog.BillableService, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return s, nil
}

type fixture struct {
	svc     *Service
	repo    *mockRepo
	appts   *mockAppts
	catalog *mockCatalog

	appointment *scheduling.Appointment
	checkup     *catalog.BillableService
	retired     *catalog.BillableService
}

func newFixture() *fixture {
	appt := &scheduling.Appointment{ID: uuid.New(), PatientID: uuid.New()}
	checkup := &catalog.BillableService{ID: uuid.New(), Name: "General checkup", Price: 150000, IsActive: true}
	retired := &catalog.BillableService{ID: uuid.New(), Name: "Old therapy", Price: 90000, IsActive: false}

	f := &fixture{
		repo:        newMockRepo(),
		appts:       &mockAppts{items: map[uuid.UUID]*scheduling.Appointment{appt.ID: appt}},
		catalog:     &mockCatalog{items: map[uuid.UUID]*catalog.BillableService{checkup.ID: checkup, retired.ID: retired}},
		appointment: appt,
		checkup:     checkup,
		retired:     retired,
	}
	f.svc = NewService(f.repo, f.appts, f.catalog)
	return f
}

func (f *fixture) validRecord() *MedicalRecord {
	return &MedicalRecord{
		AppointmentID:   f.appointment.ID,
		ExaminationDate: time.Now(),
		DoctorFirstName: "Tran",
		DoctorLastName:  "B",
		Department:      "Cardiology",
		Diagnosis:       "Hypertension",
		Prescriptions:   []Prescription{{Medicine: "Amlodipine", Dosage: "5mg", Duration: "30 days"}},
		Services:        []ServiceLine{{ServiceID: f.checkup.ID, Quantity: 2}},
	}
}

func TestCreateRecord(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	if err := f.svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PaymentStatus != PaymentUnpaid {
		t.Errorf("expected Unpaid, got %s", m.PaymentStatus)
	}
	if m.PatientID != f.appointment.PatientID {
		t.Error("expected patient id taken from the appointment")
	}
	if !f.appointment.IsProcessed {
		t.Error("expected appointment marked processed")
	}
}

func TestCreateRecord_SnapshotsPrices(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	if err := f.svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Services[0].Price != f.checkup.Price || m.Services[0].Name != f.checkup.Name {
		t.Error("expected service line to snapshot catalog name and price")
	}
	if got := m.Total(); got != 300000 {
		t.Errorf("expected total 300000, got %d", got)
	}

	// A later price change must not alter the existing record.
	f.checkup.Price = 999999
	if got := m.Total(); got != 300000 {
		t.Errorf("expected total to stay 300000, got %d", got)
	}
}

func TestCreateRecord_AppointmentMissing(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	m.AppointmentID = uuid.New()
	if err := f.svc.Create(context.Background(), m); err != ErrAppointmentNotFound {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestCreateRecord_UnknownService(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	m.Services[0].ServiceID = uuid.New()
	if err := f.svc.Create(context.Background(), m); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestCreateRecord_InactiveService(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	m.Services[0].ServiceID = f.retired.ID
	if err := f.svc.Create(context.Background(), m); err == nil {
		t.Error("expected error for inactive service")
	}
}

func TestCreateRecord_ZeroQuantity(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	m.Services[0].Quantity = 0
	if err := f.svc.Create(context.Background(), m); err == nil {
		t.Error("expected error for non-positive quantity")
	}
}

func TestUpdateRecord_KeepsPaymentProjection(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	f.svc.Create(context.Background(), m)
	f.repo.items[m.ID].PaymentStatus = PaymentPending

	upd := f.validRecord()
	upd.ID = m.ID
	upd.Diagnosis = "Revised"
	upd.PaymentStatus = PaymentPaid // must be ignored
	if err := f.svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.svc.GetByID(context.Background(), m.ID)
	if got.PaymentStatus != PaymentPending {
		t.Errorf("expected payment status preserved, got %s", got.PaymentStatus)
	}
	if got.Diagnosis != "Revised" {
		t.Errorf("expected diagnosis updated, got %s", got.Diagnosis)
	}
}

func TestDeleteRecord_ResetsAppointment(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	f.svc.Create(context.Background(), m)
	if !f.appointment.IsProcessed {
		t.Fatal("precondition: appointment processed")
	}

	if err := f.svc.Delete(context.Background(), m.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.appointment.IsProcessed {
		t.Error("expected processed flag reset on delete")
	}
}

func TestUpdatePaymentStatus_RejectsUnknown(t *testing.T) {
	f := newFixture()
	m := f.validRecord()
	f.svc.Create(context.Background(), m)

	if err := f.svc.UpdatePaymentStatus(context.Background(), m.ID, "Refunded"); err == nil {
		t.Error("expected error for unknown status")
	}
	if err := f.svc.UpdatePaymentStatus(context.Background(), m.ID, PaymentPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.svc.GetByID(context.Background(), m.ID)
	if got.PaymentStatus != PaymentPaid {
		t.Errorf("expected Paid, got %s", got.PaymentStatus)
	}
}
