package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fitpact/deposit-engine/internal/domain"
)

type contractRepository struct {
	db *sqlx.DB
}

func NewContractRepository(db *sqlx.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	query := `
		INSERT INTO contracts (id, user_id, deposit_id, amount, start_date, end_date, status,
			completed_days, violation_days, violation_penalty, accumulated_penalty, remainder_amount,
			settled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		contract.ID,
		contract.UserID,
		contract.DepositID,
		contract.Amount,
		contract.StartDate,
		contract.EndDate,
		contract.Status,
		contract.CompletedDays,
		contract.ViolationDays,
		contract.ViolationPenalty,
		contract.AccumulatedPenalty,
		contract.RemainderAmount,
		contract.SettledAt,
		contract.CreatedAt,
		contract.UpdatedAt,
	)

	return err
}

func (r *contractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	query := `
		SELECT id, user_id, deposit_id, amount, start_date, end_date, status,
			completed_days, violation_days, violation_penalty, accumulated_penalty, remainder_amount,
			settled_at, created_at, updated_at
		FROM contracts
		WHERE id = $1
	`

	var contract domain.Contract
	err := r.db.GetContext(ctx, &contract, query, id)
	if err != nil {
		return nil, err
	}

	return &contract, nil
}

func (r *contractRepository) Update(ctx context.Context, contract *domain.Contract) error {
	query := `
		UPDATE contracts
		SET deposit_id = $2, status = $3, completed_days = $4, violation_days = $5,
			accumulated_penalty = $6, settled_at = $7, updated_at = $8
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		contract.ID,
		contract.DepositID,
		contract.Status,
		contract.CompletedDays,
		contract.ViolationDays,
		contract.AccumulatedPenalty,
		contract.SettledAt,
		time.Now(),
	)

	return err
}

func (r *contractRepository) GetActive(ctx context.Context) ([]*domain.Contract, error) {
	query := `
		SELECT id, user_id, deposit_id, amount, start_date, end_date, status,
			completed_days, violation_days, violation_penalty, accumulated_penalty, remainder_amount,
			settled_at, created_at, updated_at
		FROM contracts
		WHERE status = $1
		ORDER BY created_at
	`

	var contracts []*domain.Contract
	err := r.db.SelectContext(ctx, &contracts, query, domain.ContractStatusActive)
	if err != nil {
		return nil, err
	}

	return contracts, nil
}

func (r *contractRepository) GetDay(ctx context.Context, contractID uuid.UUID, day time.Time) (*domain.ContractDay, error) {
	query := `
		SELECT id, contract_id, day, outcome, penalty_applied, created_at
		FROM contract_days
		WHERE contract_id = $1 AND day = $2
	`

	var contractDay domain.ContractDay
	err := r.db.GetContext(ctx, &contractDay, query, contractID, day)
	if err != nil {
		return nil, err
	}

	return &contractDay, nil
}

func (r *contractRepository) RecordDay(ctx context.Context, day *domain.ContractDay) error {
	// (contract_id, day) carries a unique index so a replayed evaluation
	// cannot record the same day twice
	query := `
		INSERT INTO contract_days (id, contract_id, day, outcome, penalty_applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		day.ID,
		day.ContractID,
		day.Day,
		day.Outcome,
		day.PenaltyApplied,
		day.CreatedAt,
	)

	return err
}
