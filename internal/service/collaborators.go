package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fitpact/deposit-engine/internal/domain"
)

// PaymentGateway is the payment collaborator. The engine consumes these
// capabilities but does not implement vendor protocol framing or
// signature generation.
type PaymentGateway interface {
	// CreatePaymentIntent asks the gateway for a payment URL/QR for an order
	CreatePaymentIntent(ctx context.Context, orderID string, amount decimal.Decimal, method, description string) (*domain.PaymentIntent, error)

	// RequestExternalRefund submits a refund to the gateway, returning the
	// gateway's refund reference
	RequestExternalRefund(ctx context.Context, orderID, transactionID string, amount decimal.Decimal, reason string) (string, error)
}

// Notifier delivers user notifications. Calls are fire-and-forget: a
// delivery failure never rolls back a ledger mutation.
type Notifier interface {
	Notify(ctx context.Context, userID, event string, data map[string]string) error
}

// WorkoutPlanProvider classifies contract days, which determines the
// required check-in set for each day.
type WorkoutPlanProvider interface {
	PlanFor(ctx context.Context, contractID uuid.UUID, day time.Time) (domain.DayPlan, error)
}

// LogNotifier writes notification events to the process log. Stands in
// until the push/SMS delivery adapter is wired.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID, event string, data map[string]string) error {
	log.Printf("notify user=%s event=%s data=%v", userID, event, data)
	return nil
}

// LogGateway is a development stand-in for the payment vendor adapter.
// It hands out a predictable cashier URL and accepts every refund, logging
// both calls.
type LogGateway struct {
	CashierBaseURL string
}

func (g LogGateway) CreatePaymentIntent(_ context.Context, orderID string, amount decimal.Decimal, method, _ string) (*domain.PaymentIntent, error) {
	log.Printf("payment intent order=%s amount=%s method=%s", orderID, amount.String(), method)
	return &domain.PaymentIntent{PaymentURL: g.CashierBaseURL + "/" + orderID}, nil
}

func (g LogGateway) RequestExternalRefund(_ context.Context, orderID, transactionID string, amount decimal.Decimal, reason string) (string, error) {
	refundID := uuid.NewString()
	log.Printf("external refund order=%s txn=%s amount=%s reason=%q refund=%s",
		orderID, transactionID, amount.String(), reason, refundID)
	return refundID, nil
}

// WeekdayPlanProvider derives the day plan from the weekday: Sunday rests,
// Wednesday and Saturday are active recovery, the rest are workout days.
type WeekdayPlanProvider struct {
	Location *time.Location
}

func (p WeekdayPlanProvider) PlanFor(_ context.Context, _ uuid.UUID, day time.Time) (domain.DayPlan, error) {
	switch day.In(p.Location).Weekday() {
	case time.Sunday:
		return domain.DayPlanRest, nil
	case time.Wednesday, time.Saturday:
		return domain.DayPlanActiveRecovery, nil
	default:
		return domain.DayPlanWorkout, nil
	}
}
