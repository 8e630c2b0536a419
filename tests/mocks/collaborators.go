package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/fitpact/deposit-engine/internal/domain"
)

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePaymentIntent(ctx context.Context, orderID string, amount decimal.Decimal, method, description string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, orderID, amount, method, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *MockPaymentGateway) RequestExternalRefund(ctx context.Context, orderID, transactionID string, amount decimal.Decimal, reason string) (string, error) {
	args := m.Called(ctx, orderID, transactionID, amount, reason)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID, event string, data map[string]string) error {
	args := m.Called(ctx, userID, event, data)
	return args.Error(0)
}

type MockPlanProvider struct {
	mock.Mock
}

func (m *MockPlanProvider) PlanFor(ctx context.Context, contractID uuid.UUID, day time.Time) (domain.DayPlan, error) {
	args := m.Called(ctx, contractID, day)
	return args.Get(0).(domain.DayPlan), args.Error(1)
}
