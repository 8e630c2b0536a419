package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrDepositNotFound     = errors.New("deposit not found")
	ErrContractNotFound    = errors.New("contract not found")
	ErrCheckInNotFound     = errors.New("check-in not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient deposit balance")
	ErrAlreadyFinalized    = errors.New("record is already finalized")
	ErrNotRefundable       = errors.New("deposit is not refundable")
	ErrExceedsAvailable    = errors.New("refund amount exceeds available balance")
	ErrContractNotActive   = errors.New("contract is not active")
	ErrDepositNotActive    = errors.New("deposit is not active")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeDepositNotFound     = "DEPOSIT_NOT_FOUND"
	ErrCodeContractNotFound    = "CONTRACT_NOT_FOUND"
	ErrCodeCheckInNotFound     = "CHECKIN_NOT_FOUND"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeAlreadyFinalized    = "ALREADY_FINALIZED"
	ErrCodeNotRefundable       = "NOT_REFUNDABLE"
	ErrCodeExceedsAvailable    = "EXCEEDS_AVAILABLE"
	ErrCodeContractNotActive   = "CONTRACT_NOT_ACTIVE"
	ErrCodeDepositNotActive    = "DEPOSIT_NOT_ACTIVE"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeLockError           = "LOCK_ERROR"
)

// Wrap common errors with business context

func WrapDepositNotFound(depositID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDepositNotFound,
		fmt.Sprintf("Deposit with ID %s not found", depositID),
		ErrDepositNotFound,
	)
}

func WrapContractNotFound(contractID string) *BusinessError {
	return NewBusinessError(
		ErrCodeContractNotFound,
		fmt.Sprintf("Contract with ID %s not found", contractID),
		ErrContractNotFound,
	)
}

func WrapCheckInNotFound(checkInID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCheckInNotFound,
		fmt.Sprintf("Check-in with ID %s not found", checkInID),
		ErrCheckInNotFound,
	)
}

func WrapInvalidAmount(amount decimal.Decimal) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Amount %s must be greater than zero", amount.String()),
		ErrInvalidAmount,
	)
}

func WrapInsufficientBalance(requested, available decimal.Decimal) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientBalance,
		fmt.Sprintf("Requested amount %s exceeds available balance %s", requested.String(), available.String()),
		ErrInsufficientBalance,
	)
}

func WrapAlreadyFinalized(depositID, paymentStatus string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyFinalized,
		fmt.Sprintf("Deposit %s payment is already %s", depositID, paymentStatus),
		ErrAlreadyFinalized,
	)
}

func WrapNotRefundable(depositID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotRefundable,
		fmt.Sprintf("Deposit %s with status %s cannot be refunded", depositID, status),
		ErrNotRefundable,
	)
}

func WrapExceedsAvailable(requested, available decimal.Decimal) *BusinessError {
	return NewBusinessError(
		ErrCodeExceedsAvailable,
		fmt.Sprintf("Refund amount %s exceeds available balance %s", requested.String(), available.String()),
		ErrExceedsAvailable,
	)
}

func WrapContractNotActive(contractID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeContractNotActive,
		fmt.Sprintf("Contract %s with status %s is not active", contractID, status),
		ErrContractNotActive,
	)
}

func WrapDepositNotActive(depositID, paymentStatus string) *BusinessError {
	return NewBusinessError(
		ErrCodeDepositNotActive,
		fmt.Sprintf("Deposit %s with payment status %s cannot be used", depositID, paymentStatus),
		ErrDepositNotActive,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapLockError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeLockError,
		"failed to acquire record lock",
		err,
	)
}
