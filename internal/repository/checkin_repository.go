package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fitpact/deposit-engine/internal/domain"
)

type checkInRepository struct {
	db *sqlx.DB
}

func NewCheckInRepository(db *sqlx.DB) CheckInRepository {
	return &checkInRepository{db: db}
}

func (r *checkInRepository) Create(ctx context.Context, checkIn *domain.CheckIn) error {
	query := `
		INSERT INTO check_ins (id, user_id, contract_id, type, status, checked_at, reviewed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		checkIn.ID,
		checkIn.UserID,
		checkIn.ContractID,
		checkIn.Type,
		checkIn.Status,
		checkIn.CheckedAt,
		checkIn.ReviewedAt,
		checkIn.CreatedAt,
	)

	return err
}

func (r *checkInRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CheckIn, error) {
	query := `
		SELECT id, user_id, contract_id, type, status, checked_at, reviewed_at, created_at
		FROM check_ins
		WHERE id = $1
	`

	var checkIn domain.CheckIn
	err := r.db.GetContext(ctx, &checkIn, query, id)
	if err != nil {
		return nil, err
	}

	return &checkIn, nil
}

func (r *checkInRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, reviewedAt time.Time) error {
	query := `
		UPDATE check_ins
		SET status = $2, reviewed_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, status, reviewedAt)
	return err
}

func (r *checkInRepository) GetApprovedTypes(ctx context.Context, contractID uuid.UUID, from, to time.Time) ([]domain.CheckInType, error) {
	query := `
		SELECT DISTINCT type
		FROM check_ins
		WHERE contract_id = $1 AND status = $2 AND checked_at >= $3 AND checked_at < $4
	`

	var types []domain.CheckInType
	err := r.db.SelectContext(ctx, &types, query, contractID, domain.CheckInStatusApproved, from, to)
	if err != nil {
		return nil, err
	}

	return types, nil
}
