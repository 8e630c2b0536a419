package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fitpact/deposit-engine/internal/domain"
	"github.com/fitpact/deposit-engine/internal/lock"
	"github.com/fitpact/deposit-engine/internal/service"
	customError "github.com/fitpact/deposit-engine/pkg/errors"
	"github.com/fitpact/deposit-engine/pkg/utils"
	"github.com/fitpact/deposit-engine/tests/mocks"
)

func newContractService(
	contracts *mocks.MockContractRepository,
	deposits *mocks.MockDepositRepository,
	gateway *mocks.MockPaymentGateway,
	notifier *mocks.MockNotifier,
) *service.ContractService {
	locker := lock.NewLocalLocker()
	cfg := testConfig()
	ledger := &service.DepositService{
		Deposits: deposits,
		Locker:   locker,
		Gateway:  gateway,
		Notifier: notifier,
		Config:   cfg,
	}
	return &service.ContractService{
		Contracts: contracts,
		Ledger:    ledger,
		Locker:    locker,
		Notifier:  notifier,
		Config:    cfg,
	}
}

func TestContractService_Create(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	deposits := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	svc := newContractService(contracts, deposits, gateway, &mocks.MockNotifier{})

	contracts.On("Create", mock.Anything, mock.AnythingOfType("*domain.Contract")).Return(nil)
	contracts.On("Update", mock.Anything, mock.AnythingOfType("*domain.Contract")).Return(nil)
	deposits.On("Create", mock.Anything, mock.AnythingOfType("*domain.DepositRecord")).Return(nil)
	gateway.On("CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.PaymentIntent{PaymentURL: "https://pay.example.com/p/1"}, nil)

	start := time.Now()
	response, err := svc.Create(context.Background(), &domain.CreateContractRequest{
		UserID:        "user-1",
		Amount:        decimal.NewFromInt(100),
		Currency:      domain.CurrencyCNY,
		PaymentMethod: domain.PaymentMethodWechat,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 29),
	})

	assert.NoError(t, err)
	contract := response.Contract
	assert.Equal(t, domain.ContractStatusPending, contract.Status)
	assert.True(t, contract.ViolationPenalty.Equal(decimal.NewFromInt(33)))
	assert.True(t, contract.RemainderAmount.Equal(decimal.NewFromInt(1)))

	// Contract and deposit are linked both ways
	assert.NotNil(t, contract.DepositID)
	assert.Equal(t, response.Deposit.ID, *contract.DepositID)
	assert.NotNil(t, response.Deposit.ContractID)
	assert.Equal(t, contract.ID, *response.Deposit.ContractID)
	assert.NotNil(t, response.Payment)
	contracts.AssertExpectations(t)
}

func TestContractService_Create_EndBeforeStart(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	svc := newContractService(contracts, &mocks.MockDepositRepository{}, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	start := time.Now()
	_, err := svc.Create(context.Background(), &domain.CreateContractRequest{
		UserID:        "user-1",
		Amount:        decimal.NewFromInt(100),
		Currency:      domain.CurrencyCNY,
		PaymentMethod: domain.PaymentMethodWechat,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, -2),
	})

	assert.Error(t, err)
	contracts.AssertNotCalled(t, "Create")
}

func TestContractService_Activate(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	svc := newContractService(contracts, &mocks.MockDepositRepository{}, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	contract := activeContract(nil)
	contract.Status = domain.ContractStatusPending

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	contracts.On("Update", mock.Anything, contract).Return(nil)

	activated, err := svc.Activate(context.Background(), contract.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.ContractStatusActive, activated.Status)

	// A duplicate payment callback re-activates without a second write
	_, err = svc.Activate(context.Background(), contract.ID)
	assert.NoError(t, err)
	contracts.AssertNumberOfCalls(t, "Update", 1)
}

func TestContractService_Activate_TerminalContract(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	svc := newContractService(contracts, &mocks.MockDepositRepository{}, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	contract := activeContract(nil)
	contract.Status = domain.ContractStatusCancelled
	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	_, err := svc.Activate(context.Background(), contract.ID)

	assert.True(t, errors.Is(err, customError.ErrContractNotActive))
	contracts.AssertNotCalled(t, "Update")
}

func TestContractService_Settle_CompletedRefundsRemainder(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	deposits := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	notifier := &mocks.MockNotifier{}
	svc := newContractService(contracts, deposits, gateway, notifier)

	deposit := paidDeposit(100)
	contract := activeContract(&deposit.ID)
	contract.ViolationDays = 3
	contract.AccumulatedPenalty = decimal.NewFromInt(99)

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	contracts.On("Update", mock.Anything, contract).Return(nil)
	deposits.On("GetByID", mock.Anything, deposit.ID).Return(deposit, nil)
	deposits.On("GetUsage", mock.Anything, deposit.ID).Return(usageEntries(deposit.ID, 33, 33, 33), nil)
	deposits.On("Update", mock.Anything, deposit).Return(nil)
	gateway.On("RequestExternalRefund", mock.Anything, deposit.ID.String(), "tx-100", decimal.NewFromInt(1), "contract completed").
		Return("ext-refund-1", nil)
	notifier.On("Notify", mock.Anything, "user-1", "refund_requested", mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, "user-1", "contract_settled", mock.Anything).Return(nil)

	settled, err := svc.Settle(context.Background(), contract.ID, domain.ContractStatusCompleted)

	assert.NoError(t, err)
	assert.Equal(t, domain.ContractStatusCompleted, settled.Status)
	assert.NotNil(t, settled.SettledAt)
	// The untouched remainder goes back to the user
	assert.True(t, deposit.RefundAmount.Decimal.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, domain.RefundStatusPending, *deposit.RefundStatus)
	gateway.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestContractService_Settle_FailedKeepsDeposit(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	deposits := &mocks.MockDepositRepository{}
	gateway := &mocks.MockPaymentGateway{}
	notifier := &mocks.MockNotifier{}
	svc := newContractService(contracts, deposits, gateway, notifier)

	deposit := paidDeposit(100)
	contract := activeContract(&deposit.ID)

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)
	contracts.On("Update", mock.Anything, contract).Return(nil)
	notifier.On("Notify", mock.Anything, "user-1", "contract_settled", mock.Anything).Return(nil)

	settled, err := svc.Settle(context.Background(), contract.ID, domain.ContractStatusFailed)

	assert.NoError(t, err)
	assert.Equal(t, domain.ContractStatusFailed, settled.Status)
	deposits.AssertNotCalled(t, "GetByID")
	gateway.AssertNotCalled(t, "RequestExternalRefund")
}

func TestContractService_Settle_TerminalIsNoOp(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	notifier := &mocks.MockNotifier{}
	svc := newContractService(contracts, &mocks.MockDepositRepository{}, &mocks.MockPaymentGateway{}, notifier)

	contract := activeContract(nil)
	contract.Status = domain.ContractStatusCompleted
	settledAt := time.Now().Add(-time.Hour)
	contract.SettledAt = &settledAt

	contracts.On("GetByID", mock.Anything, contract.ID).Return(contract, nil)

	settled, err := svc.Settle(context.Background(), contract.ID, domain.ContractStatusFailed)

	assert.NoError(t, err)
	assert.Equal(t, domain.ContractStatusCompleted, settled.Status)
	assert.Equal(t, &settledAt, settled.SettledAt)
	contracts.AssertNotCalled(t, "Update")
	notifier.AssertNotCalled(t, "Notify")
}

func TestContractService_Settle_InvalidFinalStatus(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	svc := newContractService(contracts, &mocks.MockDepositRepository{}, &mocks.MockPaymentGateway{}, &mocks.MockNotifier{})

	_, err := svc.Settle(context.Background(), activeContract(nil).ID, "paused")

	assert.Error(t, err)
	contracts.AssertNotCalled(t, "GetByID")
}

func TestContractService_SettleExpired(t *testing.T) {
	contracts := &mocks.MockContractRepository{}
	notifier := &mocks.MockNotifier{}
	svc := newContractService(contracts, &mocks.MockDepositRepository{}, &mocks.MockPaymentGateway{}, notifier)

	ended := activeContract(nil)
	ended.EndDate = utils.DayOf(time.Now().AddDate(0, 0, -2), time.UTC)

	running := activeContract(nil)

	contracts.On("GetActive", mock.Anything).Return([]*domain.Contract{ended, running}, nil)
	contracts.On("GetByID", mock.Anything, ended.ID).Return(ended, nil)
	contracts.On("Update", mock.Anything, ended).Return(nil)
	notifier.On("Notify", mock.Anything, "user-1", "contract_settled", mock.Anything).Return(nil)

	err := svc.SettleExpired(context.Background(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, domain.ContractStatusCompleted, ended.Status)
	assert.Equal(t, domain.ContractStatusActive, running.Status)
	contracts.AssertNumberOfCalls(t, "Update", 1)
}
