package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fitpact/deposit-engine/internal/config"
	"github.com/fitpact/deposit-engine/internal/domain"
	"github.com/fitpact/deposit-engine/internal/lock"
	"github.com/fitpact/deposit-engine/internal/repository"
	customError "github.com/fitpact/deposit-engine/pkg/errors"
	"github.com/fitpact/deposit-engine/pkg/utils"
)

// ContractService owns the contract lifecycle: creation with the penalty
// split fixed up front, activation on payment confirmation, and terminal
// settlement.
type ContractService struct {
	Contracts repository.ContractRepository
	Ledger    *DepositService
	Locker    lock.Locker
	Notifier  Notifier
	Config    *config.Config
}

func NewContractService(
	contracts repository.ContractRepository,
	ledger *DepositService,
	locker lock.Locker,
	notifier Notifier,
	config *config.Config,
) *ContractService {
	return &ContractService{
		Contracts: contracts,
		Ledger:    ledger,
		Locker:    locker,
		Notifier:  notifier,
		Config:    config,
	}
}

func contractKey(id uuid.UUID) string {
	return "lock:contract:" + id.String()
}

// Create builds a pending contract together with its backing deposit. The
// contract activates once the deposit's payment is confirmed.
func (s *ContractService) Create(ctx context.Context, request *domain.CreateContractRequest) (*domain.CreateContractResponse, error) {
	if !request.Amount.IsPositive() {
		return nil, customError.WrapInvalidAmount(request.Amount)
	}

	loc := s.Config.DayLocation()
	start := utils.DayOf(request.StartDate, loc)
	end := utils.DayOf(request.EndDate, loc)
	if end.Before(start) {
		return nil, customError.NewBusinessError(customError.ErrCodeInvalidAmount,
			"contract end date must not precede start date", nil)
	}

	contract := domain.NewContract(request.UserID, request.Amount, start, end)
	now := time.Now()
	contract.CreatedAt = now
	contract.UpdatedAt = now

	if err := s.Contracts.Create(ctx, contract); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	deposit, intent, err := s.Ledger.Create(ctx, &domain.CreateDepositRequest{
		UserID:        request.UserID,
		Amount:        request.Amount,
		Currency:      request.Currency,
		PaymentMethod: request.PaymentMethod,
		ContractID:    &contract.ID,
		Description:   "fitness contract deposit",
	})
	if err != nil {
		return nil, err
	}

	contract.DepositID = &deposit.ID
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.CreateContractResponse{
		Contract: contract,
		Deposit:  deposit,
		Payment:  intent,
	}, nil
}

// Get returns a contract by ID
func (s *ContractService) Get(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	contract, err := s.Contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapContractNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return contract, nil
}

// Activate moves a pending contract to active once its deposit has been
// paid. Re-activating an active contract is a no-op.
func (s *ContractService) Activate(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	release, err := s.Locker.Acquire(ctx, contractKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}
	defer release(ctx)

	contract, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch contract.Status {
	case domain.ContractStatusActive:
		return contract, nil
	case domain.ContractStatusPending:
	default:
		return nil, customError.WrapContractNotActive(id.String(), contract.Status)
	}

	contract.Status = domain.ContractStatusActive
	if err := s.Contracts.Update(ctx, contract); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return contract, nil
}

// Settle finalizes a contract. Settling an already-terminal contract is a
// benign no-op. On completion the linked deposit's remaining available
// balance, which includes the untouched remainder, is sent to refund; on
// failure or cancellation any refund stays an explicit user action.
func (s *ContractService) Settle(ctx context.Context, id uuid.UUID, finalStatus string) (*domain.Contract, error) {
	switch finalStatus {
	case domain.ContractStatusCompleted, domain.ContractStatusFailed, domain.ContractStatusCancelled:
	default:
		return nil, customError.NewBusinessError(customError.ErrCodeContractNotActive,
			"invalid final status "+finalStatus, nil)
	}

	release, err := s.Locker.Acquire(ctx, contractKey(id))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}

	contract, settled, err := s.settleLocked(ctx, id, finalStatus)
	release(ctx)
	if err != nil {
		return nil, err
	}
	if !settled {
		return contract, nil
	}

	if finalStatus == domain.ContractStatusCompleted && contract.DepositID != nil {
		if err := s.refundRemaining(ctx, contract); err != nil {
			log.Printf("settlement refund for contract %s failed: %v", id, err)
		}
	}

	if err := s.Notifier.Notify(ctx, contract.UserID, "contract_settled", map[string]string{
		"contract_id":  id.String(),
		"final_status": finalStatus,
	}); err != nil {
		log.Printf("settlement notification for contract %s failed: %v", id, err)
	}

	return contract, nil
}

func (s *ContractService) settleLocked(ctx context.Context, id uuid.UUID, finalStatus string) (*domain.Contract, bool, error) {
	contract, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if contract.IsTerminal() {
		return contract, false, nil
	}

	now := time.Now()
	contract.Status = finalStatus
	contract.SettledAt = &now

	if err := s.Contracts.Update(ctx, contract); err != nil {
		return nil, false, customError.WrapDatabaseError(err)
	}

	return contract, true, nil
}

func (s *ContractService) refundRemaining(ctx context.Context, contract *domain.Contract) error {
	available, err := s.Ledger.AvailableBalance(ctx, *contract.DepositID)
	if err != nil {
		return err
	}
	if !available.IsPositive() {
		return nil
	}

	_, err = s.Ledger.RequestRefund(ctx, *contract.DepositID, available, "contract completed")
	return err
}

// SettleExpired is the scheduler backstop: contracts past their end date
// settle as completed when the deposit still has available balance, or as
// failed when penalties consumed it entirely.
func (s *ContractService) SettleExpired(ctx context.Context, asOf time.Time) error {
	contracts, err := s.Contracts.GetActive(ctx)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	loc := s.Config.DayLocation()
	for _, contract := range contracts {
		if !utils.IsDayElapsed(contract.EndDate, loc, asOf) {
			continue
		}

		finalStatus := domain.ContractStatusCompleted
		if contract.DepositID != nil {
			available, err := s.Ledger.AvailableBalance(ctx, *contract.DepositID)
			if err != nil {
				log.Printf("balance lookup for contract %s failed: %v", contract.ID, err)
				continue
			}
			if !available.IsPositive() {
				finalStatus = domain.ContractStatusFailed
			}
		}

		if _, err := s.Settle(ctx, contract.ID, finalStatus); err != nil {
			log.Printf("settling expired contract %s failed: %v", contract.ID, err)
		}
	}

	return nil
}
