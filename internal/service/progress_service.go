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
	"github.com/fitpact/deposit-engine/pkg/utils"
)

// ProgressService tracks a contract's daily completion state: which
// check-in types each day requires, whether a day is satisfied, and the
// one-shot counting of completed and violated days.
type ProgressService struct {
	Contracts repository.ContractRepository
	CheckIns  repository.CheckInRepository
	Ledger    *DepositService
	Plans     WorkoutPlanProvider
	Locker    lock.Locker
	Notifier  Notifier
	Config    *config.Config
}

func NewProgressService(
	contracts repository.ContractRepository,
	checkIns repository.CheckInRepository,
	ledger *DepositService,
	plans WorkoutPlanProvider,
	locker lock.Locker,
	notifier Notifier,
	config *config.Config,
) *ProgressService {
	return &ProgressService{
		Contracts: contracts,
		CheckIns:  checkIns,
		Ledger:    ledger,
		Plans:     plans,
		Locker:    locker,
		Notifier:  notifier,
		Config:    config,
	}
}

// SubmitCheckIn records a pending check-in for later review
func (s *ProgressService) SubmitCheckIn(ctx context.Context, request *domain.SubmitCheckInRequest) (*domain.CheckIn, error) {
	if !domain.ValidCheckInType(request.Type) {
		return nil, customError.NewBusinessError(customError.ErrCodeCheckInNotFound,
			"unknown check-in type "+string(request.Type), nil)
	}

	contract, err := s.getContract(ctx, request.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != domain.ContractStatusActive {
		return nil, customError.WrapContractNotActive(contract.ID.String(), contract.Status)
	}

	now := time.Now()
	checkedAt := now
	if request.CheckedAt != nil {
		checkedAt = *request.CheckedAt
	}

	checkIn := &domain.CheckIn{
		ID:         uuid.New(),
		UserID:     request.UserID,
		ContractID: request.ContractID,
		Type:       request.Type,
		Status:     domain.CheckInStatusPending,
		CheckedAt:  checkedAt,
		CreatedAt:  now,
	}

	if err := s.CheckIns.Create(ctx, checkIn); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return checkIn, nil
}

// ReviewCheckIn applies the review verdict. On approval the check-in's day
// is re-evaluated so a newly satisfied required set is counted right away;
// the evaluation is idempotent, so a redundant pass is harmless.
func (s *ProgressService) ReviewCheckIn(ctx context.Context, id uuid.UUID, approve bool) (*domain.CheckIn, error) {
	checkIn, err := s.CheckIns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapCheckInNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	if checkIn.Status != domain.CheckInStatusPending {
		return nil, customError.WrapAlreadyFinalized(id.String(), checkIn.Status)
	}

	status := domain.CheckInStatusRejected
	if approve {
		status = domain.CheckInStatusApproved
	}

	now := time.Now()
	if err := s.CheckIns.UpdateStatus(ctx, id, status, now); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	checkIn.Status = status
	checkIn.ReviewedAt = &now

	if approve {
		day := utils.DayOf(checkIn.CheckedAt, s.Config.DayLocation())
		if _, err := s.EvaluateDay(ctx, checkIn.ContractID, day); err != nil {
			log.Printf("post-review evaluation for contract %s day %s failed: %v",
				checkIn.ContractID, day.Format("2006-01-02"), err)
		}
	}

	return checkIn, nil
}

// EvaluateDay decides, exactly once per calendar day, whether the day
// counts as completed, violated or neutral. A day that was already
// recorded returns its recorded outcome without any state change, and a
// day is never judged violated before it has fully elapsed.
func (s *ProgressService) EvaluateDay(ctx context.Context, contractID uuid.UUID, date time.Time) (*domain.DayResult, error) {
	loc := s.Config.DayLocation()
	day := utils.DayOf(date, loc)

	plan, err := s.Plans.PlanFor(ctx, contractID, day)
	if err != nil {
		return nil, customError.NewBusinessError(customError.ErrCodeDatabaseError,
			"workout plan lookup failed", err)
	}
	required := plan.RequiredTypes()

	release, err := s.Locker.Acquire(ctx, contractKey(contractID))
	if err != nil {
		return nil, customError.WrapLockError(err)
	}

	result, contract, err := s.evaluateDayLocked(ctx, contractID, day, required)
	release(ctx)
	if err != nil {
		return nil, err
	}

	if result.Outcome == domain.DayOutcomeViolated && contract != nil {
		if err := s.Notifier.Notify(ctx, contract.UserID, "violation_penalty", map[string]string{
			"contract_id":      contractID.String(),
			"day":              day.Format("2006-01-02"),
			"penalty_applied":  result.PenaltyApplied.String(),
			"remaining_amount": result.RemainingAmount.String(),
		}); err != nil {
			log.Printf("violation notification for contract %s failed: %v", contractID, err)
		}
	}

	return result, nil
}

func (s *ProgressService) evaluateDayLocked(ctx context.Context, contractID uuid.UUID, day time.Time, required []domain.CheckInType) (*domain.DayResult, *domain.Contract, error) {
	contract, err := s.getContract(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if contract.Status != domain.ContractStatusActive {
		return nil, nil, customError.WrapContractNotActive(contractID.String(), contract.Status)
	}

	result := &domain.DayResult{
		ContractID:      contractID,
		Day:             day,
		PenaltyApplied:  decimal.Zero,
		RemainingAmount: contract.RemainingAmount(),
	}

	// Days outside the contract period are neutral, as are rest days
	if day.Before(contract.StartDate) || day.After(contract.EndDate) || len(required) == 0 {
		result.Outcome = domain.DayOutcomeNeutral
		return result, contract, nil
	}

	recorded, err := s.Contracts.GetDay(ctx, contractID, day)
	if err == nil {
		result.Outcome = recorded.Outcome
		if recorded.PenaltyApplied.Valid {
			result.PenaltyApplied = recorded.PenaltyApplied.Decimal
		}
		return result, contract, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	loc := s.Config.DayLocation()
	from, to := utils.DayBounds(day, loc)
	approved, err := s.CheckIns.GetApprovedTypes(ctx, contractID, from, to)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	if covers(approved, required) {
		contract.CompletedDays++
		if err := s.recordDay(ctx, contract, day, domain.DayOutcomeCompleted, decimal.NullDecimal{}); err != nil {
			return nil, nil, err
		}
		result.Outcome = domain.DayOutcomeCompleted
		return result, contract, nil
	}

	if utils.IsDayElapsed(day, loc, time.Now()) {
		applied, err := s.applyViolation(ctx, contract)
		if err != nil {
			return nil, nil, err
		}
		if err := s.recordDay(ctx, contract, day, domain.DayOutcomeViolated, decimal.NewNullDecimal(applied)); err != nil {
			return nil, nil, err
		}
		result.Outcome = domain.DayOutcomeViolated
		result.PenaltyApplied = applied
		result.RemainingAmount = contract.RemainingAmount()
		return result, contract, nil
	}

	result.Outcome = domain.DayOutcomePending
	return result, contract, nil
}

// applyViolation charges the per-day penalty against the linked deposit.
// Only the forfeitable pool (amount - remainderAmount) is ever chargeable:
// the fixed remainder survives every penalty and goes back to the user at
// settlement. A charge larger than the deposit's spendable balance is
// capped rather than dropped, and the days counter advances even when
// nothing could be charged.
func (s *ProgressService) applyViolation(ctx context.Context, contract *domain.Contract) (decimal.Decimal, error) {
	applied := decimal.Zero

	chargeable := contract.Amount.Sub(contract.RemainderAmount).Sub(contract.AccumulatedPenalty)
	if chargeable.GreaterThan(contract.ViolationPenalty) {
		chargeable = contract.ViolationPenalty
	}

	if contract.DepositID != nil && chargeable.IsPositive() {
		description := "missed-day penalty"

		_, err := s.Ledger.RecordUsage(ctx, *contract.DepositID, chargeable, &contract.ID,
			domain.UsageReasonPenalty, description)
		switch {
		case err == nil:
			applied = chargeable
		case errors.Is(err, customError.ErrInsufficientBalance):
			available, balErr := s.Ledger.AvailableBalance(ctx, *contract.DepositID)
			if balErr != nil {
				return decimal.Zero, balErr
			}
			if available.IsPositive() {
				if _, capErr := s.Ledger.RecordUsage(ctx, *contract.DepositID, available, &contract.ID,
					domain.UsageReasonPenalty, description+" (capped at remaining balance)"); capErr != nil {
					return decimal.Zero, capErr
				}
				applied = available
			}
			log.Printf("penalty for contract %s capped: requested %s, applied %s",
				contract.ID, chargeable.String(), applied.String())
		default:
			return decimal.Zero, err
		}
	}

	contract.ViolationDays++
	contract.AccumulatedPenalty = contract.AccumulatedPenalty.Add(applied)

	return applied, nil
}

func (s *ProgressService) recordDay(ctx context.Context, contract *domain.Contract, day time.Time, outcome domain.DayOutcome, penalty decimal.NullDecimal) error {
	contractDay := &domain.ContractDay{
		ID:             uuid.New(),
		ContractID:     contract.ID,
		Day:            day,
		Outcome:        outcome,
		PenaltyApplied: penalty,
		CreatedAt:      time.Now(),
	}

	if err := s.Contracts.RecordDay(ctx, contractDay); err != nil {
		return customError.WrapDatabaseError(err)
	}

	if err := s.Contracts.Update(ctx, contract); err != nil {
		return customError.WrapDatabaseError(err)
	}

	return nil
}

// EvaluatePending walks every active contract and evaluates all its
// unrecorded days up to, but not including, the current day. Used by the
// nightly scheduler and safe to re-run at any time.
func (s *ProgressService) EvaluatePending(ctx context.Context, asOf time.Time) error {
	contracts, err := s.Contracts.GetActive(ctx)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	loc := s.Config.DayLocation()
	today := utils.DayOf(asOf, loc)

	for _, contract := range contracts {
		for day := contract.StartDate; day.Before(today) && !day.After(contract.EndDate); day = day.AddDate(0, 0, 1) {
			if _, err := s.EvaluateDay(ctx, contract.ID, day); err != nil {
				log.Printf("evaluating contract %s day %s failed: %v",
					contract.ID, day.Format("2006-01-02"), err)
				break
			}
		}
	}

	return nil
}

func (s *ProgressService) getContract(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	contract, err := s.Contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapContractNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return contract, nil
}

// covers reports whether every required type is present in approved
func covers(approved []domain.CheckInType, required []domain.CheckInType) bool {
	have := make(map[domain.CheckInType]bool, len(approved))
	for _, t := range approved {
		have[t] = true
	}
	for _, t := range required {
		if !have[t] {
			return false
		}
	}
	return true
}
