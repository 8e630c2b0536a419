package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/fitpact/deposit-engine/internal/domain"
)

type MockDepositRepository struct {
	mock.Mock
}

func (m *MockDepositRepository) Create(ctx context.Context, deposit *domain.DepositRecord) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *MockDepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DepositRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DepositRecord), args.Error(1)
}

func (m *MockDepositRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.DepositRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DepositRecord), args.Error(1)
}

func (m *MockDepositRepository) Update(ctx context.Context, deposit *domain.DepositRecord) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *MockDepositRepository) AppendUsage(ctx context.Context, entry *domain.UsageEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDepositRepository) GetUsage(ctx context.Context, depositID uuid.UUID) ([]*domain.UsageEntry, error) {
	args := m.Called(ctx, depositID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UsageEntry), args.Error(1)
}

func (m *MockDepositRepository) GetStalePending(ctx context.Context, asOf time.Time) ([]*domain.DepositRecord, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DepositRecord), args.Error(1)
}

type MockContractRepository struct {
	mock.Mock
}

func (m *MockContractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *MockContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *MockContractRepository) Update(ctx context.Context, contract *domain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *MockContractRepository) GetActive(ctx context.Context) ([]*domain.Contract, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Contract), args.Error(1)
}

func (m *MockContractRepository) GetDay(ctx context.Context, contractID uuid.UUID, day time.Time) (*domain.ContractDay, error) {
	args := m.Called(ctx, contractID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContractDay), args.Error(1)
}

func (m *MockContractRepository) RecordDay(ctx context.Context, day *domain.ContractDay) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}

type MockCheckInRepository struct {
	mock.Mock
}

func (m *MockCheckInRepository) Create(ctx context.Context, checkIn *domain.CheckIn) error {
	args := m.Called(ctx, checkIn)
	return args.Error(0)
}

func (m *MockCheckInRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CheckIn, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckIn), args.Error(1)
}

func (m *MockCheckInRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, reviewedAt time.Time) error {
	args := m.Called(ctx, id, status, reviewedAt)
	return args.Error(0)
}

func (m *MockCheckInRepository) GetApprovedTypes(ctx context.Context, contractID uuid.UUID, from, to time.Time) ([]domain.CheckInType, error) {
	args := m.Called(ctx, contractID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CheckInType), args.Error(1)
}
