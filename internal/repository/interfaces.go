package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitpact/deposit-engine/internal/domain"
)

// DepositRepository defines the interface for deposit data operations
type DepositRepository interface {
	// Create persists a new deposit record
	Create(ctx context.Context, deposit *domain.DepositRecord) error

	// GetByID retrieves a deposit record by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error)

	// GetByUserID retrieves all deposit records of a user
	GetByUserID(ctx context.Context, userID string) ([]*domain.DepositRecord, error)

	// Update persists the mutable fields of a deposit record
	Update(ctx context.Context, deposit *domain.DepositRecord) error

	// AppendUsage appends one immutable usage entry
	AppendUsage(ctx context.Context, entry *domain.UsageEntry) error

	// GetUsage retrieves a deposit's usage entries in application order
	GetUsage(ctx context.Context, depositID uuid.UUID) ([]*domain.UsageEntry, error)

	// GetStalePending retrieves pending deposits whose payment window
	// lapsed before asOf
	GetStalePending(ctx context.Context, asOf time.Time) ([]*domain.DepositRecord, error)
}

// ContractRepository defines the interface for contract data operations
type ContractRepository interface {
	// Create persists a new contract
	Create(ctx context.Context, contract *domain.Contract) error

	// GetByID retrieves a contract by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error)

	// Update persists the mutable fields of a contract
	Update(ctx context.Context, contract *domain.Contract) error

	// GetActive retrieves all contracts in active status
	GetActive(ctx context.Context) ([]*domain.Contract, error)

	// GetDay retrieves the recorded outcome of a contract day, if any
	GetDay(ctx context.Context, contractID uuid.UUID, day time.Time) (*domain.ContractDay, error)

	// RecordDay records the final outcome of a contract day
	RecordDay(ctx context.Context, day *domain.ContractDay) error
}

// CheckInRepository defines the interface for check-in data operations
type CheckInRepository interface {
	// Create persists a new check-in
	Create(ctx context.Context, checkIn *domain.CheckIn) error

	// GetByID retrieves a check-in by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CheckIn, error)

	// UpdateStatus updates the review status of a check-in
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, reviewedAt time.Time) error

	// GetApprovedTypes lists the distinct approved check-in types for a
	// contract within [from, to)
	GetApprovedTypes(ctx context.Context, contractID uuid.UUID, from, to time.Time) ([]domain.CheckInType, error)
}
