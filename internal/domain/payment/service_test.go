package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/platform/zalopay"
)

// -- Mocks --

// mockRepo keeps transactions by reference and mirrors the medical-record
// payment projection the way the SQL implementation does, so tests can
// assert both sides of the atomic update.
type mockRepo struct {
	byRef        map[string]*Transaction
	projection   map[uuid.UUID]records.PaymentStatus
	transitions  int
	failCreates  int // force ErrConflict on the next N creates
	failMarkPaid error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		byRef:      make(map[string]*Transaction),
		projection: make(map[uuid.UUID]records.PaymentStatus),
	}
}

func (m *mockRepo) Create(_ context.Context, t *Transaction) error {
	if m.failCreates > 0 {
		m.failCreates--
		return ErrConflict
	}
	if _, exists := m.byRef[t.AppTransID]; exists {
		return ErrConflict
	}
	t.ID = uuid.New()
	t.Status = records.PaymentPending
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	m.byRef[t.AppTransID] = t
	m.projection[t.MedicalRecordID] = records.PaymentPending
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Transaction, error) {
	for _, t := range m.byRef {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByAppTransID(_ context.Context, ref string) (*Transaction, error) {
	t, ok := m.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Transaction, int, error) {
	var out []*Transaction
	for _, t := range m.byRef {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByRecord(_ context.Context, recordID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var out []*Transaction
	for _, t := range m.byRef {
		if t.MedicalRecordID == recordID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) MarkPaid(_ context.Context, appTransID, zpTransID string) (*Transaction, bool, error) {
	if m.failMarkPaid != nil {
		return nil, false, m.failMarkPaid
	}
	t, ok := m.byRef[appTransID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if t.Status == records.PaymentPaid {
		return t, false, nil
	}
	t.Status = records.PaymentPaid
	t.ZpTransID = &zpTransID
	m.projection[t.MedicalRecordID] = records.PaymentPaid
	m.transitions++
	return t, true, nil
}

type mockRecords struct {
	items map[uuid.UUID]*records.MedicalRecord
}

func (m *mockRecords) GetByID(_ context.Context, id uuid.UUID) (*records.MedicalRecord, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return r, nil
}

type mockGateway struct {
	resp   *zalopay.CreateOrderResponse
	err    error
	calls  int
	orders []*zalopay.Order
}

func (m *mockGateway) CreateOrder(_ context.Context, order *zalopay.Order) (*zalopay.CreateOrderResponse, error) {
	m.calls++
	m.orders = append(m.orders, order)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type fixture struct {
	svc    *Service
	repo   *mockRepo
	store  *mockRecords
	gw     *mockGateway
	cfg    zalopay.Config
	record *records.MedicalRecord
}

func newFixture() *fixture {
	rec := &records.MedicalRecord{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		PaymentStatus: records.PaymentUnpaid,
	}
	f := &fixture{
		repo:  newMockRepo(),
		store: &mockRecords{items: map[uuid.UUID]*records.MedicalRecord{rec.ID: rec}},
		gw: &mockGateway{resp: &zalopay.CreateOrderResponse{
			ReturnCode:    1,
			ReturnMessage: "success",
			OrderURL:      "https://sb-openapi.zalopay.vn/pay/abc",
		}},
		cfg: zalopay.Config{
			AppID:       "2553",
			Key1:        "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL",
			Key2:        "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz",
			CallbackURL: "https://clinic.example.com/api/v1/payment/callback",
		},
		record: rec,
	}
	f.svc = NewService(f.repo, f.store, f.gw, f.cfg)
	return f
}

// signedCallback builds a callback body whose mac is valid under key2.
func (f *fixture) signedCallback(t *testing.T, appTransID string, zpTransID int64) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"app_trans_id": appTransID,
		"zp_trans_id":  zpTransID,
		"amount":       500000,
		"return_code":  1,
	})
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(map[string]string{
		"data": string(data),
		"mac":  zalopay.Sign(f.cfg.Key2, string(data)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

// -- Order creation --

func TestCreatePayment(t *testing.T) {
	f := newFixture()
	res, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "checkup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Transaction.Status != records.PaymentPending {
		t.Errorf("expected Pending, got %s", res.Transaction.Status)
	}
	if res.OrderURL == "" {
		t.Error("expected order url from gateway")
	}
	if f.repo.projection[f.record.ID] != records.PaymentPending {
		t.Error("expected record projection moved to Pending")
	}
	if !strings.HasPrefix(res.Transaction.AppTransID, time.Now().Format("060102")+"_") {
		t.Errorf("reference %q does not carry the date prefix", res.Transaction.AppTransID)
	}
}

func TestCreatePayment_SignatureMatchesCanonicalString(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "checkup"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := f.gw.orders[0]
	if order.Mac != zalopay.Sign(f.cfg.Key1, order.CanonicalString()) {
		t.Error("transmitted mac does not match signature over the canonical string")
	}
	if order.AppUser != f.record.PatientID.String() {
		t.Error("expected app_user derived from the owning patient")
	}
}

func TestCreatePayment_RecordMissing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreatePayment(context.Background(), uuid.New(), 500000, "")
	if !errors.Is(err, records.ErrNotFound) {
		t.Errorf("expected records.ErrNotFound, got %v", err)
	}
	if len(f.repo.byRef) != 0 {
		t.Error("no transaction may be created for an unknown record")
	}
	if f.gw.calls != 0 {
		t.Error("gateway must not be called for an unknown record")
	}
}

func TestCreatePayment_InvalidAmount(t *testing.T) {
	f := newFixture()
	for _, amount := range []int64{0, -500000} {
		if _, err := f.svc.CreatePayment(context.Background(), f.record.ID, amount, ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestCreatePayment_GatewayRejected(t *testing.T) {
	f := newFixture()
	f.gw.resp = &zalopay.CreateOrderResponse{ReturnCode: 2, ReturnMessage: "invalid mac"}

	_, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if len(f.repo.byRef) != 0 {
		t.Error("rejected order must not leave a stored transaction")
	}
	if f.repo.projection[f.record.ID] == records.PaymentPending {
		t.Error("rejected order must not touch the record projection")
	}
}

func TestCreatePayment_GatewayTransportError(t *testing.T) {
	f := newFixture()
	f.gw.err = fmt.Errorf("connection refused")

	if _, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, ""); err == nil {
		t.Fatal("expected error")
	}
	if len(f.repo.byRef) != 0 {
		t.Error("transport failure must not leave a stored transaction")
	}
}

func TestCreatePayment_RetriesOnRefConflict(t *testing.T) {
	f := newFixture()
	f.repo.failCreates = 2

	res, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.gw.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", f.gw.calls)
	}
	if res.Transaction.AppTransID == "" {
		t.Error("expected a reference after retry")
	}
}

func TestCreatePayment_RefConflictExhausted(t *testing.T) {
	f := newFixture()
	f.repo.failCreates = refAttempts

	_, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected wrapped ErrConflict after exhausted retries, got %v", err)
	}
}

func TestCreate_DuplicateRefIsConflict(t *testing.T) {
	repo := newMockRepo()
	first := &Transaction{MedicalRecordID: uuid.New(), AppTransID: "260831_000000001", Amount: 1}
	if err := repo.Create(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dup := &Transaction{MedicalRecordID: uuid.New(), AppTransID: "260831_000000001", Amount: 2}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	stored, _ := repo.GetByAppTransID(context.Background(), "260831_000000001")
	if stored.Amount != 1 {
		t.Error("conflicting create must not overwrite the stored transaction")
	}
}

// -- Callback reconciliation --

func TestHandleCallback_SettlesTransaction(t *testing.T) {
	f := newFixture()
	res, err := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ackRes := f.svc.HandleCallback(context.Background(), f.signedCallback(t, res.Transaction.AppTransID, 240131000001))
	if ackRes.ReturnCode == nil || *ackRes.ReturnCode != 1 {
		t.Fatalf("expected success ack, got %+v", ackRes)
	}

	stored, _ := f.repo.GetByAppTransID(context.Background(), res.Transaction.AppTransID)
	if stored.Status != records.PaymentPaid {
		t.Errorf("expected Paid, got %s", stored.Status)
	}
	if stored.ZpTransID == nil || *stored.ZpTransID != "240131000001" {
		t.Error("expected settlement reference recorded")
	}
	if f.repo.projection[f.record.ID] != records.PaymentPaid {
		t.Error("expected record projection moved to Paid")
	}
}

func TestHandleCallback_Idempotent(t *testing.T) {
	f := newFixture()
	res, _ := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")
	body := f.signedCallback(t, res.Transaction.AppTransID, 77)

	first := f.svc.HandleCallback(context.Background(), body)
	second := f.svc.HandleCallback(context.Background(), body)

	if f.repo.transitions != 1 {
		t.Errorf("expected exactly one transition, got %d", f.repo.transitions)
	}
	if second.ReturnCode == nil || *second.ReturnCode != *first.ReturnCode || second.ReturnMessage != first.ReturnMessage {
		t.Errorf("expected identical ack on redelivery: %+v vs %+v", first, second)
	}
}

func TestHandleCallback_MacMismatch(t *testing.T) {
	f := newFixture()
	res, _ := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")

	body, _ := json.Marshal(map[string]string{
		"data": fmt.Sprintf(`{"app_trans_id":%q,"zp_trans_id":77}`, res.Transaction.AppTransID),
		"mac":  "deadbeef",
	})
	ackRes := f.svc.HandleCallback(context.Background(), body)
	if ackRes.ReturnCode == nil || *ackRes.ReturnCode != -1 || ackRes.ReturnMessage != "mac not equal" {
		t.Fatalf("expected {-1, mac not equal}, got %+v", ackRes)
	}
	stored, _ := f.repo.GetByAppTransID(context.Background(), res.Transaction.AppTransID)
	if stored.Status != records.PaymentPending {
		t.Error("mac mismatch must not mutate state")
	}
}

func TestHandleCallback_TamperedData(t *testing.T) {
	f := newFixture()
	res, _ := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")

	var env struct {
		Data string `json:"data"`
		Mac  string `json:"mac"`
	}
	if err := json.Unmarshal(f.signedCallback(t, res.Transaction.AppTransID, 77), &env); err != nil {
		t.Fatal(err)
	}
	// Flip one byte of the signed data; the mac must stop matching.
	raw := []byte(env.Data)
	raw[len(raw)/2] ^= 0x01
	body, _ := json.Marshal(map[string]string{"data": string(raw), "mac": env.Mac})

	ackRes := f.svc.HandleCallback(context.Background(), body)
	if ackRes.ReturnCode == nil || *ackRes.ReturnCode != -1 {
		t.Fatalf("expected rejection, got %+v", ackRes)
	}
	stored, _ := f.repo.GetByAppTransID(context.Background(), res.Transaction.AppTransID)
	if stored.Status != records.PaymentPending {
		t.Error("tampered callback must not mutate state")
	}
}

func TestHandleCallback_UnknownRef(t *testing.T) {
	f := newFixture()
	f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")

	ackRes := f.svc.HandleCallback(context.Background(), f.signedCallback(t, "260831_999999999", 77))
	if ackRes.ReturnCode != nil || ackRes.ReturnMessage != "" {
		t.Errorf("expected neutral ack for unknown reference, got %+v", ackRes)
	}
	if f.repo.transitions != 0 {
		t.Error("unknown reference must not mutate state")
	}
	if f.repo.projection[f.record.ID] != records.PaymentPending {
		t.Error("record projection must be unchanged")
	}
}

func TestHandleCallback_MalformedEnvelope(t *testing.T) {
	f := newFixture()
	for _, body := range []string{
		`not json at all`,
		`{}`,
		`{"data":"x"}`,
		`{"mac":"y"}`,
	} {
		ackRes := f.svc.HandleCallback(context.Background(), []byte(body))
		if ackRes.ReturnCode == nil || *ackRes.ReturnCode != -1 {
			t.Errorf("body %q: expected rejection, got %+v", body, ackRes)
		}
	}
}

func TestHandleCallback_MalformedData(t *testing.T) {
	f := newFixture()
	data := "this is not json"
	body, _ := json.Marshal(map[string]string{
		"data": data,
		"mac":  zalopay.Sign(f.cfg.Key2, data),
	})
	ackRes := f.svc.HandleCallback(context.Background(), body)
	if ackRes.ReturnCode == nil || *ackRes.ReturnCode != -1 {
		t.Errorf("expected rejection for unparsable data, got %+v", ackRes)
	}
}

func TestHandleCallback_InternalFault(t *testing.T) {
	f := newFixture()
	res, _ := f.svc.CreatePayment(context.Background(), f.record.ID, 500000, "")
	f.repo.failMarkPaid = fmt.Errorf("connection reset")

	ackRes := f.svc.HandleCallback(context.Background(), f.signedCallback(t, res.Transaction.AppTransID, 77))
	if ackRes.ReturnCode == nil || *ackRes.ReturnCode != 0 {
		t.Fatalf("expected return_code 0 on internal fault, got %+v", ackRes)
	}
	if ackRes.ReturnMessage == "" {
		t.Error("expected failure description in the ack")
	}
}

func TestNewAppTransID_Format(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ref := newAppTransID(now)
	if !strings.HasPrefix(ref, "260831_") {
		t.Errorf("expected date prefix 260831_, got %q", ref)
	}
	if len(ref) != len("260831_")+9 {
		t.Errorf("expected 9-digit suffix, got %q", ref)
	}
}
