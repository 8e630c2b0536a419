package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fitpact/deposit-engine/internal/config"
	"github.com/fitpact/deposit-engine/internal/domain"
	"github.com/fitpact/deposit-engine/internal/lock"
	"github.com/fitpact/deposit-engine/internal/service"
	customError "github.com/fitpact/deposit-engine/pkg/errors"
	"github.com/fitpact/deposit-engine/tests/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			DepositExpiryMinutes: 30,
			DayTimezone:          "UTC",
		},
	}
}

func newDepositService(repo *mocks.MockDepositRepository, gateway *mocks.MockPaymentGateway, notifier *mocks.MockNotifier) *service.DepositService {
	return &service.DepositService{
		Deposits: repo,
		Locker:   lock.NewLocalLocker(),
		Gateway:  gateway,
		Notifier: notifier,
		Config:   testConfig(),
	}
}

func paidDeposit(amount int64) *domain.DepositRecord {
	txID := "tx-100"
	now := time.Now()
	return &domain.DepositRecord{
		ID:            uuid.New(),
		UserID:        "user-1",
		Amount:        decimal.NewFromInt(amount),
		Currency:      domain.CurrencyCNY,
		PaymentMethod: domain.PaymentMethodWechat,
		PaymentStatus: domain.PaymentStatusSuccess,
		TransactionID: &txID,
		PaidAt:        &now,
		Status:        domain.DepositStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func usageEntries(depositID uuid.UUID, amounts ...int64) []*domain.UsageEntry {
	entries := make([]*domain.UsageEntry, 0, len(amounts))
	for i, amount := range amounts {
		entries = append(entries, &domain.UsageEntry{
			ID:         uuid.New(),
			Seq:        int64(i + 1),
			DepositID:  depositID,
			UsedAmount: decimal.NewFromInt(amount),
			Reason:     domain.UsageReasonPenalty,
			UsedTime:   time.Now(),
		})
	}
	return entries
}

func TestDepositService_Create(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	svc := newDepositService(repo, gateway, &mocks.MockNotifier{})

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.DepositRecord")).Return(nil)
	gateway.On("CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything, domain.PaymentMethodWechat, mock.Anything).
		Return(&domain.PaymentIntent{PaymentURL: "https://pay.example.com/p/1"}, nil)

	deposit, intent, err := svc.Create(context.Background(), &domain.CreateDepositRequest{
		UserID:        "user-1",
		Amount:        decimal.NewFromInt(150),
		Currency:      domain.CurrencyCNY,
		PaymentMethod: domain.PaymentMethodWechat,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, deposit.PaymentStatus)
	assert.Equal(t, domain.DepositStatusActive, deposit.Status)
	assert.NotNil(t, deposit.ExpiryDate)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *deposit.ExpiryDate, 5*time.Second)
	assert.NotNil(t, intent)
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestDepositService_Create_InvalidAmount(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		_, _, err := svc.Create(context.Background(), &domain.CreateDepositRequest{
			UserID:        "user-1",
			Amount:        amount,
			Currency:      domain.CurrencyCNY,
			PaymentMethod: domain.PaymentMethodWechat,
		})
		assert.True(t, errors.Is(err, customError.ErrInvalidAmount), amount.String())
	}

	repo.AssertNotCalled(t, "Create")
}

func TestDepositService_Create_GatewayFailure(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	svc := newDepositService(repo, gateway, &mocks.MockNotifier{})

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	gateway.On("CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("cashier unreachable"))

	// The record survives a gateway outage; only the intent is missing
	deposit, intent, err := svc.Create(context.Background(), &domain.CreateDepositRequest{
		UserID:        "user-1",
		Amount:        decimal.NewFromInt(100),
		Currency:      domain.CurrencyCNY,
		PaymentMethod: domain.PaymentMethodAlipay,
	})

	assert.NoError(t, err)
	assert.NotNil(t, deposit)
	assert.Nil(t, intent)
}

func TestDepositService_ConfirmPayment(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	expiry := time.Now().Add(30 * time.Minute)
	deposit := paidDeposit(150)
	deposit.PaymentStatus = domain.PaymentStatusPending
	deposit.TransactionID = nil
	deposit.PaidAt = nil
	deposit.ExpiryDate = &expiry

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	paidAt := time.Now()
	confirmed, err := svc.ConfirmPayment(context.Background(), deposit.ID, "tx-555", paidAt, domain.PaymentStatusSuccess)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, confirmed.PaymentStatus)
	assert.Equal(t, "tx-555", *confirmed.TransactionID)
	assert.Nil(t, confirmed.ExpiryDate)

	// A duplicate callback must not double-apply
	_, err = svc.ConfirmPayment(context.Background(), deposit.ID, "tx-555", paidAt, domain.PaymentStatusSuccess)
	assert.True(t, errors.Is(err, customError.ErrAlreadyFinalized))
}

func TestDepositService_ConfirmPayment_LapsedWindow(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	expiry := time.Now().Add(-time.Hour)
	deposit := paidDeposit(100)
	deposit.PaymentStatus = domain.PaymentStatusPending
	deposit.ExpiryDate = &expiry

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	// The read path expires the record before the confirmation is considered
	_, err := svc.ConfirmPayment(context.Background(), deposit.ID, "tx-9", time.Now(), domain.PaymentStatusSuccess)

	assert.True(t, errors.Is(err, customError.ErrAlreadyFinalized))
	assert.Equal(t, domain.PaymentStatusFailed, deposit.PaymentStatus)
	assert.Equal(t, domain.DepositStatusExpired, deposit.Status)
}

func TestDepositService_RecordUsage_Sequence(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	deposit := paidDeposit(90)
	ctx := context.Background()

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("AppendUsage", mock.Anything, mock.AnythingOfType("*domain.UsageEntry")).Return(nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	repo.On("GetUsage", mock.Anything, deposit.ID).Return([]*domain.UsageEntry{}, nil).Once()
	_, err := svc.RecordUsage(ctx, deposit.ID, decimal.NewFromInt(40), nil, domain.UsageReasonPenalty, "missed-day penalty")
	assert.NoError(t, err)

	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 40), nil).Once()
	_, err = svc.RecordUsage(ctx, deposit.ID, decimal.NewFromInt(40), nil, domain.UsageReasonPenalty, "missed-day penalty")
	assert.NoError(t, err)

	// 80 of 90 used: a further 20 must be rejected, the ledger never overdraws
	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 40, 40), nil).Once()
	_, err = svc.RecordUsage(ctx, deposit.ID, decimal.NewFromInt(20), nil, domain.UsageReasonPenalty, "missed-day penalty")
	assert.True(t, errors.Is(err, customError.ErrInsufficientBalance))

	// Consuming the exact remainder flips the record to used
	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 40, 40), nil).Once()
	_, err = svc.RecordUsage(ctx, deposit.ID, decimal.NewFromInt(10), nil, domain.UsageReasonPenalty, "missed-day penalty")
	assert.NoError(t, err)
	assert.Equal(t, domain.DepositStatusUsed, deposit.Status)

	repo.AssertExpectations(t)
}

func TestDepositService_RecordUsage_RequiresPaidDeposit(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	expiry := time.Now().Add(30 * time.Minute)
	deposit := paidDeposit(100)
	deposit.PaymentStatus = domain.PaymentStatusPending
	deposit.ExpiryDate = &expiry

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)

	_, err := svc.RecordUsage(context.Background(), deposit.ID, decimal.NewFromInt(10), nil, domain.UsageReasonPenalty, "missed-day penalty")

	assert.True(t, errors.Is(err, customError.ErrDepositNotActive))
	repo.AssertNotCalled(t, "AppendUsage")
}

func TestDepositService_RequestRefund(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	notifier := &mocks.MockNotifier{}
	svc := newDepositService(repo, gateway, notifier)

	deposit := paidDeposit(100)

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 60), nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)
	gateway.On("RequestExternalRefund", mock.Anything, deposit.ID.String(), "tx-100", decimal.NewFromInt(40), "user requested").
		Return("ext-refund-1", nil)
	notifier.On("Notify", mock.Anything, "user-1", "refund_requested", mock.Anything).Return(nil)

	refunded, err := svc.RequestRefund(context.Background(), deposit.ID, decimal.NewFromInt(40), "user requested")

	assert.NoError(t, err)
	assert.NotNil(t, refunded.RefundID)
	assert.Equal(t, domain.RefundStatusPending, *refunded.RefundStatus)
	assert.True(t, refunded.RefundAmount.Decimal.Equal(decimal.NewFromInt(40)))
	gateway.AssertExpectations(t)
	notifier.AssertExpectations(t)

	// A second request while the first is in flight is rejected
	_, err = svc.RequestRefund(context.Background(), deposit.ID, decimal.NewFromInt(10), "user requested")
	assert.True(t, errors.Is(err, customError.ErrNotRefundable))
}

func TestDepositService_RequestRefund_ExceedsAvailable(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	svc := newDepositService(repo, gateway, &mocks.MockNotifier{})

	deposit := paidDeposit(100)

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 60), nil)

	_, err := svc.RequestRefund(context.Background(), deposit.ID, decimal.NewFromInt(50), "user requested")

	assert.True(t, errors.Is(err, customError.ErrExceedsAvailable))
	assert.Nil(t, deposit.RefundStatus)
	repo.AssertNotCalled(t, "Update")
	gateway.AssertNotCalled(t, "RequestExternalRefund")
}

func TestDepositService_HandleRefundResult_Completed(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	deposit := paidDeposit(100)
	refundID := uuid.New()
	reason := "user requested"
	pending := domain.RefundStatusPending
	deposit.RefundID = &refundID
	deposit.RefundAmount = decimal.NewNullDecimal(decimal.NewFromInt(40))
	deposit.RefundReason = &reason
	deposit.RefundStatus = &pending

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 60), nil)
	repo.On("AppendUsage", mock.Anything, mock.AnythingOfType("*domain.UsageEntry")).Return(nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	result, err := svc.HandleRefundResult(context.Background(), deposit.ID, domain.RefundStatusCompleted)

	assert.NoError(t, err)
	assert.Equal(t, domain.RefundStatusCompleted, *result.RefundStatus)
	assert.NotNil(t, result.RefundTime)
	// Partial refund: the record is settled but the payment is not fully reversed
	assert.Equal(t, domain.DepositStatusRefunded, result.Status)
	assert.Equal(t, domain.PaymentStatusSuccess, result.PaymentStatus)

	// The completed refund is terminal for callbacks
	_, err = svc.HandleRefundResult(context.Background(), deposit.ID, domain.RefundStatusCompleted)
	assert.True(t, errors.Is(err, customError.ErrAlreadyFinalized))
}

func TestDepositService_PendingRefundReservesBalance(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	deposit := paidDeposit(100)
	refundID := uuid.New()
	pending := domain.RefundStatusPending
	deposit.RefundID = &refundID
	deposit.RefundAmount = decimal.NewNullDecimal(decimal.NewFromInt(40))
	deposit.RefundStatus = &pending

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 60), nil)

	// The in-flight refund reserves its 40: nothing is left for debits
	balance, err := svc.AvailableBalance(context.Background(), deposit.ID)
	assert.NoError(t, err)
	assert.True(t, balance.IsZero())

	_, err = svc.RecordUsage(context.Background(), deposit.ID, decimal.NewFromInt(10), nil, domain.UsageReasonPenalty, "missed-day penalty")
	assert.True(t, errors.Is(err, customError.ErrInsufficientBalance))
	repo.AssertNotCalled(t, "AppendUsage")

	// The reserved amount is still there when the gateway confirms the payout
	repo.On("AppendUsage", mock.Anything, mock.AnythingOfType("*domain.UsageEntry")).Return(nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	result, err := svc.HandleRefundResult(context.Background(), deposit.ID, domain.RefundStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, domain.RefundStatusCompleted, *result.RefundStatus)
	assert.Equal(t, domain.DepositStatusRefunded, result.Status)
}

func TestDepositService_HandleRefundResult_Failed(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	deposit := paidDeposit(100)
	refundID := uuid.New()
	pending := domain.RefundStatusPending
	deposit.RefundID = &refundID
	deposit.RefundAmount = decimal.NewNullDecimal(decimal.NewFromInt(40))
	deposit.RefundStatus = &pending

	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	result, err := svc.HandleRefundResult(context.Background(), deposit.ID, domain.RefundStatusFailed)

	assert.NoError(t, err)
	assert.Equal(t, domain.RefundStatusFailed, *result.RefundStatus)
	assert.Equal(t, domain.DepositStatusActive, result.Status)
	repo.AssertNotCalled(t, "AppendUsage")
}

func TestDepositService_ExpireStale(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	expiry := time.Now().Add(-time.Hour)
	deposit := paidDeposit(100)
	deposit.PaymentStatus = domain.PaymentStatusPending
	deposit.ExpiryDate = &expiry

	asOf := time.Now()
	repo.On("GetStalePending", mock.Anything, asOf).Return([]*domain.DepositRecord{deposit}, nil)
	repo.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	repo.On("Update", mock.Anything, deposit).Return(nil)

	err := svc.ExpireStale(context.Background(), asOf)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, deposit.PaymentStatus)
	assert.Equal(t, domain.DepositStatusExpired, deposit.Status)
	repo.AssertExpectations(t)
}

func TestDepositService_GetStats(t *testing.T) {
	repo := &mocks.MockDepositRepository{}
	svc := newDepositService(repo, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	active := paidDeposit(100)

	refunded := paidDeposit(50)
	refunded.PaymentStatus = domain.PaymentStatusRefunded
	refunded.Status = domain.DepositStatusRefunded
	completed := domain.RefundStatusCompleted
	refundTime := time.Now()
	refunded.RefundAmount = decimal.NewNullDecimal(decimal.NewFromInt(50))
	refunded.RefundStatus = &completed
	refunded.RefundTime = &refundTime
	laterPaidAt := active.PaidAt.Add(time.Hour)
	refunded.PaidAt = &laterPaidAt

	unpaid := paidDeposit(999)
	unpaid.PaymentStatus = domain.PaymentStatusPending

	repo.On("GetByUserID", mock.Anything, "user-1").
		Return([]*domain.DepositRecord{active, refunded, unpaid}, nil)
	repo.On("GetUsage", mock.Anything, active.ID).Return(usageEntries(active.ID, 30), nil)

	stats, err := svc.GetStats(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, 2, stats.RecordCount)
	assert.True(t, stats.TotalDeposit.Equal(decimal.NewFromInt(150)))
	assert.True(t, stats.TotalRefunded.Equal(decimal.NewFromInt(50)))
	assert.True(t, stats.AvailableDeposit.Equal(decimal.NewFromInt(70)))
	assert.True(t, stats.FrozenDeposit.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, &laterPaidAt, stats.LastDepositAt)
}
