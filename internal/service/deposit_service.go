package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fitpact/deposit-engine/internal/config"
	"github.com/fitpact/deposit-engine/internal/domain"
	"github.com/fitpact/deposit-engine/internal/lock"
	"github.com/fitpact/deposit-engine/internal/repository"
	customError "github.com/fitpact/deposit-engine/pkg/errors"
)

// DepositService owns the deposit ledger: record lifecycle, usage entries,
// refund workflow and derived balances. All balance-affecting operations
// run under the record's lock; collaborator calls happen outside it.
type DepositService struct {
	Deposits repository.DepositRepository
	Locker   lock.Locker
	Gateway  PaymentGateway
	Notifier Notifier
	Config   *config.Config
}

func NewDepositService(
	deposits repository.DepositRepository,
	locker lock.Locker,
	gateway PaymentGateway,
	notifier Notifier,
	config *config.Config,
) *DepositService {
	return &DepositService{
		Deposits: deposits,
		Locker:   locker,
		Gateway:  gateway,
		Notifier: notifier,
		Config:   config,
	}
}

func depositKey(id uuid.UUID) string {
	return "lock:deposit:" + id.String()
}

// Create registers a pending deposit and asks the payment gateway for a
// payment intent. A gateway failure is logged but does not undo the
// record; the client can re-request the intent later.
func (s *DepositService) Create(ctx context.Context, request *domain.CreateDepositRequest) (*domain.DepositRecord, *domain.PaymentIntent, error) {
	if !request.Amount.IsPositive() {
		return nil, nil, customError.WrapInvalidAmount(request.Amount)
	}

	now := time.Now()
	expiry := now.Add(s.Config.DepositExpiry())

	deposit := &domain.DepositRecord{
		ID:            uuid.New(),
		UserID:        request.UserID,
		ContractID:    request.ContractID,
		Amount:        request.Amount,
		Currency:      request.Currency,
		PaymentMethod: request.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.DepositStatusActive,
		ExpiryDate:    &expiry,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Deposits.Create(ctx, deposit); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	intent, err := s.Gateway.CreatePaymentIntent(ctx, deposit.ID.String(), deposit.Amount, deposit.PaymentMethod, request.Description)
	if err != nil {
		log.Printf("payment intent for deposit %s failed: %v", deposit.ID, err)
		return deposit, nil, nil
	}

	return deposit, intent, nil
}

// Get returns a deposit record, applying lazy expiry on the read path
func (s *DepositService) Get(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	release, err := s.Locker.Acquire(ctx, depositKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}
	defer release(ctx)

	return s.getLocked(ctx, id)
}

// getLocked loads a record and expires it in place if its payment window
// has lapsed. Callers must hold the record's lock.
func (s *DepositService) getLocked(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	deposit, err := s.Deposits.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapDepositNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if deposit.PaymentStatus == domain.PaymentStatusPending &&
		deposit.ExpiryDate != nil && time.Now().After(*deposit.ExpiryDate) {
		deposit.PaymentStatus = domain.PaymentStatusFailed
		deposit.Status = domain.DepositStatusExpired
		if err := s.Deposits.Update(ctx, deposit); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	return deposit, nil
}

// GetUsage returns the append-only usage history of a record
func (s *DepositService) GetUsage(ctx context.Context, id uuid.UUID) ([]*domain.UsageEntry, error) {
	entries, err := s.Deposits.GetUsage(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return entries, nil
}

// ConfirmPayment applies the gateway's payment decision. Confirming a
// record whose payment is already terminal fails with AlreadyFinalized so
// a duplicate callback can never double-apply.
func (s *DepositService) ConfirmPayment(ctx context.Context, id uuid.UUID, transactionID string, paidAt time.Time, outcome string) (*domain.DepositRecord, error) {
	release, err := s.Locker.Acquire(ctx, depositKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}
	defer release(ctx)

	deposit, err := s.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if deposit.PaymentStatus != domain.PaymentStatusPending {
		return nil, customError.WrapAlreadyFinalized(id.String(), deposit.PaymentStatus)
	}

	switch outcome {
	case domain.PaymentStatusSuccess:
		deposit.PaymentStatus = domain.PaymentStatusSuccess
		deposit.TransactionID = &transactionID
		deposit.PaidAt = &paidAt
		deposit.ExpiryDate = nil
	case domain.PaymentStatusFailed:
		deposit.PaymentStatus = domain.PaymentStatusFailed
		deposit.Status = domain.DepositStatusExpired
	default:
		return nil, customError.NewBusinessError(customError.ErrCodeAlreadyFinalized,
			"unknown payment outcome "+outcome, nil)
	}

	if err := s.Deposits.Update(ctx, deposit); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return deposit, nil
}

// RecordUsage debits part of a deposit by appending an immutable usage
// entry. The combined usage can never exceed the deposit amount: the check
// and the append happen under the record's lock.
func (s *DepositService) RecordUsage(ctx context.Context, id uuid.UUID, amount decimal.Decimal, contractID *uuid.UUID, reason, description string) (*domain.DepositRecord, error) {
	if !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount(amount)
	}

	release, err := s.Locker.Acquire(ctx, depositKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}
	defer release(ctx)

	return s.recordUsageLocked(ctx, id, amount, contractID, reason, description)
}

func (s *DepositService) recordUsageLocked(ctx context.Context, id uuid.UUID, amount decimal.Decimal, contractID *uuid.UUID, reason, description string) (*domain.DepositRecord, error) {
	deposit, err := s.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if deposit.PaymentStatus != domain.PaymentStatusSuccess || deposit.Status == domain.DepositStatusExpired {
		return nil, customError.WrapDepositNotActive(id.String(), deposit.PaymentStatus)
	}

	entries, err := s.Deposits.GetUsage(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	available := deposit.Available(entries)
	limit := available
	if reason != domain.UsageReasonRefund {
		limit = spendable(deposit, entries)
	}
	if amount.GreaterThan(limit) {
		return nil, customError.WrapInsufficientBalance(amount, limit)
	}

	entry := &domain.UsageEntry{
		ID:          uuid.New(),
		DepositID:   id,
		ContractID:  contractID,
		UsedAmount:  amount,
		Reason:      reason,
		Description: description,
		UsedTime:    time.Now(),
	}

	if err := s.Deposits.AppendUsage(ctx, entry); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if available.Sub(amount).IsZero() && deposit.Status == domain.DepositStatusActive {
		if reason == domain.UsageReasonRefund {
			deposit.Status = domain.DepositStatusRefunded
		} else {
			deposit.Status = domain.DepositStatusUsed
		}
		if err := s.Deposits.Update(ctx, deposit); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	return deposit, nil
}

// AvailableBalance returns the balance open to new debits. A refund that
// is still in flight reserves its amount, so the gateway payout can never
// be overdrawn by a penalty racing the refund callback.
func (s *DepositService) AvailableBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	deposit, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	entries, err := s.Deposits.GetUsage(ctx, id)
	if err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}

	return spendable(deposit, entries), nil
}

// spendable is the balance a new non-refund debit may consume: the derived
// available amount minus any pending refund's reserved amount.
func spendable(deposit *domain.DepositRecord, entries []*domain.UsageEntry) decimal.Decimal {
	available := deposit.Available(entries)
	if deposit.HasPendingRefund() && deposit.RefundAmount.Valid {
		available = available.Sub(deposit.RefundAmount.Decimal)
		if available.IsNegative() {
			return decimal.Zero
		}
	}
	return available
}

// RequestRefund records a refund request on the deposit. Only the request
// is recorded here; moving the money is delegated to the payment gateway
// after the lock is released, and its outcome arrives as a callback.
func (s *DepositService) RequestRefund(ctx context.Context, id uuid.UUID, refundAmount decimal.Decimal, reason string) (*domain.DepositRecord, error) {
	if !refundAmount.IsPositive() {
		return nil, customError.WrapInvalidAmount(refundAmount)
	}

	release, err := s.Locker.Acquire(ctx, depositKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}

	deposit, err := s.requestRefundLocked(ctx, id, refundAmount, reason)
	release(ctx)
	if err != nil {
		return nil, err
	}

	// Money movement is fire-and-forget relative to the ledger update
	transactionID := ""
	if deposit.TransactionID != nil {
		transactionID = *deposit.TransactionID
	}
	if _, err := s.Gateway.RequestExternalRefund(ctx, id.String(), transactionID, refundAmount, reason); err != nil {
		log.Printf("external refund submission for deposit %s failed: %v", id, err)
	}

	if err := s.Notifier.Notify(ctx, deposit.UserID, "refund_requested", map[string]string{
		"deposit_id": id.String(),
		"amount":     refundAmount.String(),
	}); err != nil {
		log.Printf("refund notification for deposit %s failed: %v", id, err)
	}

	return deposit, nil
}

func (s *DepositService) requestRefundLocked(ctx context.Context, id uuid.UUID, refundAmount decimal.Decimal, reason string) (*domain.DepositRecord, error) {
	deposit, err := s.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if deposit.Status != domain.DepositStatusActive || deposit.PaymentStatus != domain.PaymentStatusSuccess {
		return nil, customError.WrapNotRefundable(id.String(), deposit.Status)
	}

	if deposit.HasPendingRefund() {
		return nil, customError.WrapNotRefundable(id.String(), "refund already in progress")
	}

	entries, err := s.Deposits.GetUsage(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	available := deposit.Available(entries)
	if refundAmount.GreaterThan(available) {
		return nil, customError.WrapExceedsAvailable(refundAmount, available)
	}

	refundID := uuid.New()
	status := domain.RefundStatusPending
	deposit.RefundID = &refundID
	deposit.RefundAmount = decimal.NewNullDecimal(refundAmount)
	deposit.RefundReason = &reason
	deposit.RefundStatus = &status
	deposit.RefundTime = nil

	if err := s.Deposits.Update(ctx, deposit); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return deposit, nil
}

// HandleRefundResult applies the gateway's refund outcome. On completion
// the refunded amount becomes a usage entry so the audit trail and the
// derived balances stay consistent.
func (s *DepositService) HandleRefundResult(ctx context.Context, id uuid.UUID, outcome string) (*domain.DepositRecord, error) {
	release, err := s.Locker.Acquire(ctx, depositKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}
	defer release(ctx)

	deposit, err := s.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if !deposit.HasPendingRefund() {
		status := "none"
		if deposit.RefundStatus != nil {
			status = *deposit.RefundStatus
		}
		return nil, customError.WrapAlreadyFinalized(id.String(), "refund "+status)
	}

	switch outcome {
	case domain.RefundStatusCompleted:
		refundAmount := deposit.RefundAmount.Decimal
		if _, err := s.recordUsageLocked(ctx, id, refundAmount, deposit.ContractID,
			domain.UsageReasonRefund, "refund payout"); err != nil {
			return nil, err
		}

		// recordUsageLocked persisted status changes on its own copy
		deposit, err = s.Deposits.GetByID(ctx, id)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		now := time.Now()
		status := domain.RefundStatusCompleted
		deposit.RefundStatus = &status
		deposit.RefundTime = &now
		if refundAmount.Equal(deposit.Amount) {
			deposit.PaymentStatus = domain.PaymentStatusRefunded
		}
	case domain.RefundStatusFailed:
		status := domain.RefundStatusFailed
		deposit.RefundStatus = &status
	default:
		return nil, customError.NewBusinessError(customError.ErrCodeAlreadyFinalized,
			"unknown refund outcome "+outcome, nil)
	}

	if err := s.Deposits.Update(ctx, deposit); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return deposit, nil
}

// ExpireStale expires every pending deposit whose payment window has
// lapsed. Expiry is lazy on every read path already; this sweep just
// keeps long-untouched records from lingering in pending forever.
func (s *DepositService) ExpireStale(ctx context.Context, asOf time.Time) error {
	stale, err := s.Deposits.GetStalePending(ctx, asOf)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	for _, deposit := range stale {
		if _, err := s.Get(ctx, deposit.ID); err != nil {
			log.Printf("expiring deposit %s failed: %v", deposit.ID, err)
		}
	}

	return nil
}

// GetStats aggregates a user's deposit records into balance totals
func (s *DepositService) GetStats(ctx context.Context, userID string) (*domain.DepositStats, error) {
	deposits, err := s.Deposits.GetByUserID(ctx, userID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	stats := &domain.DepositStats{
		TotalDeposit:     decimal.Zero,
		TotalRefunded:    decimal.Zero,
		AvailableDeposit: decimal.Zero,
		FrozenDeposit:    decimal.Zero,
	}

	for _, deposit := range deposits {
		if deposit.PaymentStatus != domain.PaymentStatusSuccess &&
			deposit.PaymentStatus != domain.PaymentStatusRefunded {
			continue
		}

		stats.RecordCount++
		stats.TotalDeposit = stats.TotalDeposit.Add(deposit.Amount)

		if deposit.RefundStatus != nil && *deposit.RefundStatus == domain.RefundStatusCompleted {
			stats.TotalRefunded = stats.TotalRefunded.Add(deposit.RefundAmount.Decimal)
		}

		if deposit.Status == domain.DepositStatusActive {
			entries, err := s.Deposits.GetUsage(ctx, deposit.ID)
			if err != nil {
				return nil, customError.WrapDatabaseError(err)
			}
			stats.AvailableDeposit = stats.AvailableDeposit.Add(deposit.Available(entries))
		}

		if deposit.PaidAt != nil && (stats.LastDepositAt == nil || deposit.PaidAt.After(*stats.LastDepositAt)) {
			stats.LastDepositAt = deposit.PaidAt
		}
	}

	frozen := stats.TotalDeposit.Sub(stats.AvailableDeposit).Sub(stats.TotalRefunded)
	if frozen.IsPositive() {
		stats.FrozenDeposit = frozen
	}

	return stats, nil
}
