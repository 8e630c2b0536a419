package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDepositRecord_Available(t *testing.T) {
	deposit := &DepositRecord{
		ID:     uuid.New(),
		Amount: decimal.NewFromInt(90),
	}

	assert.True(t, deposit.Available(nil).Equal(decimal.NewFromInt(90)))

	entries := []*UsageEntry{
		{UsedAmount: decimal.NewFromInt(40), Reason: UsageReasonPenalty},
		{UsedAmount: decimal.NewFromInt(40), Reason: UsageReasonPenalty},
	}
	assert.True(t, TotalUsed(entries).Equal(decimal.NewFromInt(80)))
	assert.True(t, deposit.Available(entries).Equal(decimal.NewFromInt(10)))

	entries = append(entries, &UsageEntry{UsedAmount: decimal.NewFromInt(10), Reason: UsageReasonRefund})
	assert.True(t, deposit.Available(entries).IsZero())

	// Never negative even if the entries overshoot the amount
	entries = append(entries, &UsageEntry{UsedAmount: decimal.NewFromInt(5), Reason: UsageReasonPenalty})
	assert.True(t, deposit.Available(entries).IsZero())
}

func TestDepositRecord_RefundInfo(t *testing.T) {
	deposit := &DepositRecord{ID: uuid.New(), Amount: decimal.NewFromInt(100)}
	assert.Nil(t, deposit.RefundInfo())
	assert.False(t, deposit.HasPendingRefund())

	refundID := uuid.New()
	reason := "contract completed"
	status := RefundStatusPending
	deposit.RefundID = &refundID
	deposit.RefundAmount = decimal.NewNullDecimal(decimal.NewFromInt(40))
	deposit.RefundReason = &reason
	deposit.RefundStatus = &status

	info := deposit.RefundInfo()
	assert.NotNil(t, info)
	assert.Equal(t, refundID, info.RefundID)
	assert.True(t, info.RefundAmount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, RefundStatusPending, info.RefundStatus)
	assert.True(t, deposit.HasPendingRefund())

	completed := RefundStatusCompleted
	now := time.Now()
	deposit.RefundStatus = &completed
	deposit.RefundTime = &now
	assert.False(t, deposit.HasPendingRefund())
	assert.Equal(t, &now, deposit.RefundInfo().RefundTime)
}
