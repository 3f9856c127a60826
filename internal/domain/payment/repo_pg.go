package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/records"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const txnCols = `id, medical_record_id, appointment_id, amount, app_trans_id,
	mac, zp_trans_id, status, description, created_at, updated_at`

func (r *repoPG) scanTxn(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.MedicalRecordID, &t.AppointmentID, &t.Amount,
		&t.AppTransID, &t.Mac, &t.ZpTransID, &t.Status, &t.Description,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	t.Status = records.PaymentPending
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO payment_transaction (id, medical_record_id, appointment_id,
				amount, app_trans_id, mac, status, description)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			t.ID, t.MedicalRecordID, t.AppointmentID, t.Amount,
			t.AppTransID, t.Mac, t.Status, t.Description)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return err
		}
		_, err = r.conn(ctx).Exec(ctx, `
			UPDATE medical_record SET payment_status=$2, updated_at=NOW() WHERE id=$1`,
			t.MedicalRecordID, records.PaymentPending)
		return err
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return r.scanTxn(r.conn(ctx).QueryRow(ctx,
		`SELECT `+txnCols+` FROM payment_transaction WHERE id = $1`, id))
}

func (r *repoPG) GetByAppTransID(ctx context.Context, appTransID string) (*Transaction, error) {
	return r.scanTxn(r.conn(ctx).QueryRow(ctx,
		`SELECT `+txnCols+` FROM payment_transaction WHERE app_trans_id = $1`, appTransID))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payment_transaction`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+txnCols+` FROM payment_transaction ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) ListByRecord(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment_transaction WHERE medical_record_id = $1`, recordID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+txnCols+` FROM payment_transaction WHERE medical_record_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		recordID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return r.collect(rows, total)
}

func (r *repoPG) collect(rows pgx.Rows, total int) ([]*Transaction, int, error) {
	var items []*Transaction
	for rows.Next() {
		t, err := r.scanTxn(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkPaid(ctx context.Context, appTransID, zpTransID string) (*Transaction, bool, error) {
	var t *Transaction
	var transitioned bool
	err := db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		// Conditional update: only one of several concurrent callbacks for
		// the same reference can flip the status.
		row := r.conn(ctx).QueryRow(ctx, `
			UPDATE payment_transaction
			SET status=$3, zp_trans_id=$2, updated_at=NOW()
			WHERE app_trans_id=$1 AND status <> $3
			RETURNING `+txnCols,
			appTransID, zpTransID, records.PaymentPaid)
		updated, err := r.scanTxn(row)
		if err == nil {
			t = updated
			transitioned = true
			_, err = r.conn(ctx).Exec(ctx, `
				UPDATE medical_record SET payment_status=$2, updated_at=NOW() WHERE id=$1`,
				t.MedicalRecordID, records.PaymentPaid)
			return err
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		// No row transitioned: either already Paid (idempotent redelivery)
		// or the reference is unknown.
		existing, err := r.GetByAppTransID(ctx, appTransID)
		if err != nil {
			return err
		}
		t = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return t, transitioned, nil
}
