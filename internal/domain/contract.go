package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ContractStatusPending   = "pending"
	ContractStatusActive    = "active"
	ContractStatusCompleted = "completed"
	ContractStatusFailed    = "failed"
	ContractStatusCancelled = "cancelled"
)

// penaltyParts is the number of flat per-violation penalties a deposit is
// divided into. ViolationPenalty and RemainderAmount are fixed at contract
// creation so that penaltyParts * ViolationPenalty + RemainderAmount always
// equals Amount exactly, with no drift over the contract's lifetime.
const penaltyParts = 3

// Contract represents a daily check-in commitment backed by a deposit
type Contract struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	UserID             string          `json:"user_id" db:"user_id"`
	DepositID          *uuid.UUID      `json:"deposit_id,omitempty" db:"deposit_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	StartDate          time.Time       `json:"start_date" db:"start_date"`
	EndDate            time.Time       `json:"end_date" db:"end_date"`
	Status             string          `json:"status" db:"status"`
	CompletedDays      int             `json:"completed_days" db:"completed_days"`
	ViolationDays      int             `json:"violation_days" db:"violation_days"`
	ViolationPenalty   decimal.Decimal `json:"violation_penalty" db:"violation_penalty"`
	AccumulatedPenalty decimal.Decimal `json:"accumulated_penalty" db:"accumulated_penalty"`
	RemainderAmount    decimal.Decimal `json:"remainder_amount" db:"remainder_amount"`
	SettledAt          *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// NewContract builds a pending contract with the penalty split fixed at
// creation: ViolationPenalty = floor(amount/3), RemainderAmount = the
// leftover, so their recombination is exact.
func NewContract(userID string, amount decimal.Decimal, startDate, endDate time.Time) *Contract {
	penalty := amount.Div(decimal.NewFromInt(penaltyParts)).Floor()
	remainder := amount.Sub(penalty.Mul(decimal.NewFromInt(penaltyParts)))

	return &Contract{
		ID:                 uuid.New(),
		UserID:             userID,
		Amount:             amount,
		StartDate:          startDate,
		EndDate:            endDate,
		Status:             ContractStatusPending,
		ViolationPenalty:   penalty,
		AccumulatedPenalty: decimal.Zero,
		RemainderAmount:    remainder,
	}
}

// RemainingAmount returns amount - accumulatedPenalty, clamped at zero.
// Derived, never stored.
func (c *Contract) RemainingAmount() decimal.Decimal {
	remaining := c.Amount.Sub(c.AccumulatedPenalty)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsTerminal reports whether the contract has reached a final state
func (c *Contract) IsTerminal() bool {
	switch c.Status {
	case ContractStatusCompleted, ContractStatusFailed, ContractStatusCancelled:
		return true
	}
	return false
}

// DayOutcome classifies an evaluated contract day
type DayOutcome string

const (
	DayOutcomeCompleted DayOutcome = "completed"
	DayOutcomeViolated  DayOutcome = "violated"
	DayOutcomeNeutral   DayOutcome = "neutral"
	DayOutcomePending   DayOutcome = "pending"
)

// ContractDay records the final outcome of one calendar day of a contract.
// The (contract_id, day) pair is unique, which makes re-evaluating an
// already-counted day a no-op even across restarts.
type ContractDay struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	ContractID     uuid.UUID           `json:"contract_id" db:"contract_id"`
	Day            time.Time           `json:"day" db:"day"`
	Outcome        DayOutcome          `json:"outcome" db:"outcome"`
	PenaltyApplied decimal.NullDecimal `json:"penalty_applied,omitempty" db:"penalty_applied"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
}

// DTOs for requests and responses

type CreateContractRequest struct {
	UserID        string          `json:"user_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	Currency      string          `json:"currency" validate:"required,oneof=CNY USD"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=wechat alipay bank_card"`
	StartDate     time.Time       `json:"start_date" validate:"required"`
	EndDate       time.Time       `json:"end_date" validate:"required"`
}

type CreateContractResponse struct {
	Contract *Contract      `json:"contract"`
	Deposit  *DepositRecord `json:"deposit"`
	Payment  *PaymentIntent `json:"payment,omitempty"`
}

type SettleContractRequest struct {
	FinalStatus string `json:"final_status" validate:"required,oneof=completed failed cancelled"`
}

type DayResult struct {
	ContractID      uuid.UUID       `json:"contract_id"`
	Day             time.Time       `json:"day"`
	Outcome         DayOutcome      `json:"outcome"`
	PenaltyApplied  decimal.Decimal `json:"penalty_applied"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}
