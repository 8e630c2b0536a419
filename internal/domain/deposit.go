package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CurrencyCNY = "CNY"
	CurrencyUSD = "USD"
)

const (
	PaymentMethodWechat   = "wechat"
	PaymentMethodAlipay   = "alipay"
	PaymentMethodBankCard = "bank_card"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusSuccess  = "success"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	DepositStatusActive   = "active"
	DepositStatusUsed     = "used"
	DepositStatusRefunded = "refunded"
	DepositStatusExpired  = "expired"
)

const (
	UsageReasonPenalty  = "penalty"
	UsageReasonRefund   = "refund"
	UsageReasonTransfer = "transfer"
)

const (
	RefundStatusPending    = "pending"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
)

// DepositRecord tracks a user's paid-in deposit and its lifecycle.
// Refund columns are flat so the record maps onto one row; RefundInfo()
// assembles them for API responses.
type DepositRecord struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	ContractID    *uuid.UUID      `json:"contract_id,omitempty" db:"contract_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	PaymentStatus string          `json:"payment_status" db:"payment_status"`
	TransactionID *string         `json:"transaction_id,omitempty" db:"transaction_id"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	Status        string          `json:"status" db:"status"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	RefundID      *uuid.UUID      `json:"refund_id,omitempty" db:"refund_id"`
	RefundAmount  decimal.NullDecimal `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundReason  *string         `json:"refund_reason,omitempty" db:"refund_reason"`
	RefundStatus  *string         `json:"refund_status,omitempty" db:"refund_status"`
	RefundTime    *time.Time      `json:"refund_time,omitempty" db:"refund_time"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// UsageEntry is an immutable, append-only record of a partial consumption
// of a deposit. Entries are ordered by seq, assigned at insert time.
type UsageEntry struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Seq         int64           `json:"seq" db:"seq"`
	DepositID   uuid.UUID       `json:"deposit_id" db:"deposit_id"`
	ContractID  *uuid.UUID      `json:"contract_id,omitempty" db:"contract_id"`
	UsedAmount  decimal.Decimal `json:"used_amount" db:"used_amount"`
	Reason      string          `json:"reason" db:"reason"`
	Description string          `json:"description" db:"description"`
	UsedTime    time.Time       `json:"used_time" db:"used_time"`
}

// RefundInfo is the refund request attached to a deposit record, if any
type RefundInfo struct {
	RefundID     uuid.UUID       `json:"refund_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	RefundReason string          `json:"refund_reason"`
	RefundStatus string          `json:"refund_status"`
	RefundTime   *time.Time      `json:"refund_time,omitempty"`
}

// RefundInfo returns the refund request recorded on this deposit, or nil
func (d *DepositRecord) RefundInfo() *RefundInfo {
	if d.RefundID == nil || d.RefundStatus == nil {
		return nil
	}
	info := &RefundInfo{
		RefundID:     *d.RefundID,
		RefundAmount: d.RefundAmount.Decimal,
		RefundStatus: *d.RefundStatus,
		RefundTime:   d.RefundTime,
	}
	if d.RefundReason != nil {
		info.RefundReason = *d.RefundReason
	}
	return info
}

// TotalUsed sums the usage entries of a record. Derived, never stored.
func TotalUsed(entries []*UsageEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.UsedAmount)
	}
	return total
}

// Available returns max(0, amount - usedAmount). Derived, never stored.
func (d *DepositRecord) Available(entries []*UsageEntry) decimal.Decimal {
	available := d.Amount.Sub(TotalUsed(entries))
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// HasPendingRefund reports whether a refund request is still in flight
func (d *DepositRecord) HasPendingRefund() bool {
	return d.RefundStatus != nil &&
		(*d.RefundStatus == RefundStatusPending || *d.RefundStatus == RefundStatusProcessing)
}

// DTOs for requests and responses

type CreateDepositRequest struct {
	UserID        string          `json:"user_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	Currency      string          `json:"currency" validate:"required,oneof=CNY USD"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=wechat alipay bank_card"`
	ContractID    *uuid.UUID      `json:"contract_id,omitempty"`
	Description   string          `json:"description,omitempty"`
}

type CreateDepositResponse struct {
	Deposit *DepositRecord `json:"deposit"`
	Payment *PaymentIntent `json:"payment,omitempty"`
}

type PaymentIntent struct {
	PaymentURL string `json:"payment_url"`
	QRCode     string `json:"qr_code,omitempty"`
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	Reason string          `json:"reason" validate:"required"`
}

type PaymentCallback struct {
	OrderID       uuid.UUID `json:"order_id" validate:"required"`
	TransactionID string    `json:"transaction_id" validate:"required"`
	Status        string    `json:"status" validate:"required,oneof=success failed"`
	PaymentTime   time.Time `json:"payment_time"`
}

type RefundCallback struct {
	DepositID uuid.UUID `json:"deposit_id" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=completed failed"`
}

type DepositStats struct {
	TotalDeposit     decimal.Decimal `json:"total_deposit"`
	RecordCount      int             `json:"record_count"`
	TotalRefunded    decimal.Decimal `json:"total_refunded"`
	AvailableDeposit decimal.Decimal `json:"available_deposit"`
	FrozenDeposit    decimal.Decimal `json:"frozen_deposit"`
	LastDepositAt    *time.Time      `json:"last_deposit_at,omitempty"`
}
