package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fitpact/deposit-engine/internal/domain"
)

type depositRepository struct {
	db *sqlx.DB
}

func NewDepositRepository(db *sqlx.DB) DepositRepository {
	return &depositRepository{db: db}
}

func (r *depositRepository) Create(ctx context.Context, deposit *domain.DepositRecord) error {
	query := `
		INSERT INTO deposits (id, user_id, contract_id, amount, currency, payment_method, payment_status,
			transaction_id, paid_at, status, expiry_date, refund_id, refund_amount, refund_reason,
			refund_status, refund_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.ExecContext(ctx, query,
		deposit.ID,
		deposit.UserID,
		deposit.ContractID,
		deposit.Amount,
		deposit.Currency,
		deposit.PaymentMethod,
		deposit.PaymentStatus,
		deposit.TransactionID,
		deposit.PaidAt,
		deposit.Status,
		deposit.ExpiryDate,
		deposit.RefundID,
		deposit.RefundAmount,
		deposit.RefundReason,
		deposit.RefundStatus,
		deposit.RefundTime,
		deposit.CreatedAt,
		deposit.UpdatedAt,
	)

	return err
}

func (r *depositRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	query := `
		SELECT id, user_id, contract_id, amount, currency, payment_method, payment_status,
			transaction_id, paid_at, status, expiry_date, refund_id, refund_amount, refund_reason,
			refund_status, refund_time, created_at, updated_at
		FROM deposits
		WHERE id = $1
	`

	var deposit domain.DepositRecord
	err := r.db.GetContext(ctx, &deposit, query, id)
	if err != nil {
		return nil, err
	}

	return &deposit, nil
}

func (r *depositRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.DepositRecord, error) {
	query := `
		SELECT id, user_id, contract_id, amount, currency, payment_method, payment_status,
			transaction_id, paid_at, status, expiry_date, refund_id, refund_amount, refund_reason,
			refund_status, refund_time, created_at, updated_at
		FROM deposits
		WHERE user_id = $1
		ORDER BY created_at
	`

	var deposits []*domain.DepositRecord
	err := r.db.SelectContext(ctx, &deposits, query, userID)
	if err != nil {
		return nil, err
	}

	return deposits, nil
}

func (r *depositRepository) Update(ctx context.Context, deposit *domain.DepositRecord) error {
	query := `
		UPDATE deposits
		SET contract_id = $2, payment_status = $3, transaction_id = $4, paid_at = $5, status = $6,
			expiry_date = $7, refund_id = $8, refund_amount = $9, refund_reason = $10,
			refund_status = $11, refund_time = $12, updated_at = $13
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		deposit.ID,
		deposit.ContractID,
		deposit.PaymentStatus,
		deposit.TransactionID,
		deposit.PaidAt,
		deposit.Status,
		deposit.ExpiryDate,
		deposit.RefundID,
		deposit.RefundAmount,
		deposit.RefundReason,
		deposit.RefundStatus,
		deposit.RefundTime,
		time.Now(),
	)

	return err
}

func (r *depositRepository) GetStalePending(ctx context.Context, asOf time.Time) ([]*domain.DepositRecord, error) {
	query := `
		SELECT id, user_id, contract_id, amount, currency, payment_method, payment_status,
			transaction_id, paid_at, status, expiry_date, refund_id, refund_amount, refund_reason,
			refund_status, refund_time, created_at, updated_at
		FROM deposits
		WHERE payment_status = $1 AND expiry_date < $2
		ORDER BY expiry_date
	`

	var deposits []*domain.DepositRecord
	err := r.db.SelectContext(ctx, &deposits, query, domain.PaymentStatusPending, asOf)
	if err != nil {
		return nil, err
	}

	return deposits, nil
}

func (r *depositRepository) AppendUsage(ctx context.Context, entry *domain.UsageEntry) error {
	// seq comes from the table's bigserial; usage rows are insert-only
	query := `
		INSERT INTO deposit_usages (id, deposit_id, contract_id, used_amount, reason, description, used_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.DepositID,
		entry.ContractID,
		entry.UsedAmount,
		entry.Reason,
		entry.Description,
		entry.UsedTime,
	)

	return err
}

func (r *depositRepository) GetUsage(ctx context.Context, depositID uuid.UUID) ([]*domain.UsageEntry, error) {
	query := `
		SELECT id, seq, deposit_id, contract_id, used_amount, reason, description, used_time
		FROM deposit_usages
		WHERE deposit_id = $1
		ORDER BY seq
	`

	var entries []*domain.UsageEntry
	err := r.db.SelectContext(ctx, &entries, query, depositID)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
