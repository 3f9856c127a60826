package payment

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/platform/zalopay"
)

// ErrInvalidAmount is returned when an order is requested for a non-positive
// amount.
var ErrInvalidAmount = errors.New("amount must be positive")

// GatewayError is a non-success reply from the payment gateway.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected order: %d %s", e.Code, e.Message)
}

// RecordStore is the slice of the medical-record repository the payment
// service needs to resolve an order's owning record.
type RecordStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*records.MedicalRecord, error)
}

// Gateway submits signed orders; satisfied by zalopay.Client.
type Gateway interface {
	CreateOrder(ctx context.Context, order *zalopay.Order) (*zalopay.CreateOrderResponse, error)
}

type Service struct {
	repo    Repository
	records RecordStore
	gateway Gateway
	cfg     zalopay.Config
}

func NewService(repo Repository, recordStore RecordStore, gateway Gateway, cfg zalopay.Config) *Service {
	return &Service{repo: repo, records: recordStore, gateway: gateway, cfg: cfg}
}

// refAttempts bounds the retry loop on a transaction-reference collision.
const refAttempts = 3

// newAppTransID builds a merchant transaction reference: the gateway requires
// the current date as prefix; the suffix is crypto-random over a space large
// enough that collisions are handled by the store's uniqueness constraint
// rather than expected.
func newAppTransID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return fmt.Sprintf("%s_%09d", now.Format("060102"), n.Int64())
}

// CreatePaymentResult is what an accepted order yields: the stored Pending
// transaction and the gateway's payment URL for the payer.
type CreatePaymentResult struct {
	Transaction *Transaction
	OrderURL    string
	ReturnCode  int
}

// CreatePayment builds, signs and submits a payment order for a medical
// record, then persists the Pending transaction. The transaction is stored
// only after the gateway accepts the order, so a gateway failure leaves no
// orphan row.
func (s *Service) CreatePayment(ctx context.Context, recordID uuid.UUID, amount int64, description string) (*CreatePaymentResult, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = fmt.Sprintf("Clinic payment for record %s", recordID)
	}

	var lastErr error
	for attempt := 0; attempt < refAttempts; attempt++ {
		order := &zalopay.Order{
			AppID:       s.cfg.AppID,
			AppTransID:  newAppTransID(time.Now()),
			AppUser:     rec.PatientID.String(),
			AppTime:     time.Now().UnixMilli(),
			Amount:      amount,
			Item:        "[]",
			EmbedData:   "{}",
			Description: description,
			CallbackURL: s.cfg.CallbackURL,
		}
		s.cfg.SignOrder(order)

		resp, err := s.gateway.CreateOrder(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("submit order: %w", err)
		}
		if !resp.Accepted() {
			return nil, &GatewayError{Code: resp.ReturnCode, Message: resp.ReturnMessage}
		}

		t := &Transaction{
			MedicalRecordID: rec.ID,
			AppointmentID:   rec.AppointmentID,
			Amount:          amount,
			AppTransID:      order.AppTransID,
			Mac:             order.Mac,
			Description:     description,
		}
		err = s.repo.Create(ctx, t)
		if errors.Is(err, ErrConflict) {
			lastErr = err
			log.Warn().Str("app_trans_id", order.AppTransID).
				Msg("transaction reference collision, regenerating")
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().Str("app_trans_id", t.AppTransID).
			Str("medical_record_id", rec.ID.String()).
			Int64("amount", amount).
			Msg("payment order created")
		return &CreatePaymentResult{Transaction: t, OrderURL: resp.OrderURL, ReturnCode: resp.ReturnCode}, nil
	}
	return nil, fmt.Errorf("could not allocate a unique transaction reference: %w", lastErr)
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, limit, offset int) ([]*Transaction, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListTransactionsByRecord(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	return s.repo.ListByRecord(ctx, recordID, limit, offset)
}

// Ack is the JSON body returned to the gateway for every callback. The
// gateway treats return_code 1 or absent as success, -1 as rejected and 0 as
// an internal error it may retry.
type Ack struct {
	ReturnCode    *int   `json:"return_code,omitempty"`
	ReturnMessage string `json:"return_message,omitempty"`
}

func ack(code int, msg string) Ack {
	return Ack{ReturnCode: &code, ReturnMessage: msg}
}

type callbackEnvelope struct {
	Data string `json:"data"`
	Mac  string `json:"mac"`
}

// HandleCallback runs the reconciliation state machine for one inbound
// gateway callback. It never returns an error: every outcome, including an
// internal fault, becomes a JSON acknowledgement so the transport layer can
// always reply 200.
func (s *Service) HandleCallback(ctx context.Context, body []byte) (result Ack) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("callback handling panicked")
			result = ack(0, fmt.Sprintf("internal error: %v", r))
		}
	}()

	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Data == "" || env.Mac == "" {
		return ack(-1, "invalid callback")
	}

	// Authentication gate: the MAC over the raw data string is the only
	// thing that proves the callback came from the gateway. A mismatch must
	// not mutate anything.
	if !s.cfg.VerifyCallback(env.Data, env.Mac) {
		log.Warn().Msg("callback mac mismatch")
		return ack(-1, "mac not equal")
	}

	var payload zalopay.CallbackPayload
	if err := json.Unmarshal([]byte(env.Data), &payload); err != nil || payload.AppTransID == "" {
		return ack(-1, "invalid callback data")
	}

	zpRef := fmt.Sprintf("%d", payload.ZpTransID)
	t, transitioned, err := s.repo.MarkPaid(ctx, payload.AppTransID, zpRef)
	if errors.Is(err, ErrNotFound) {
		// Replay, foreign merchant id or test traffic. Not ours, not fatal.
		log.Info().Str("app_trans_id", payload.AppTransID).
			Msg("callback for unknown transaction reference")
		return Ack{}
	}
	if err != nil {
		log.Error().Err(err).Str("app_trans_id", payload.AppTransID).
			Msg("callback reconciliation failed")
		return ack(0, err.Error())
	}

	if transitioned {
		log.Info().Str("app_trans_id", t.AppTransID).Str("zp_trans_id", zpRef).
			Msg("transaction settled")
	} else {
		log.Info().Str("app_trans_id", t.AppTransID).
			Msg("duplicate callback for settled transaction")
	}
	return ack(1, "success")
}
