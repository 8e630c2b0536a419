package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckInType is the kind of daily evidence a user submits
type CheckInType string

const (
	CheckInTypeBreakfast CheckInType = "breakfast"
	CheckInTypeLunch     CheckInType = "lunch"
	CheckInTypeDinner    CheckInType = "dinner"
	CheckInTypeGym       CheckInType = "gym"
	CheckInTypeProtein   CheckInType = "protein"
)

const (
	CheckInStatusPending  = "pending"
	CheckInStatusApproved = "approved"
	CheckInStatusRejected = "rejected"
)

// ValidCheckInType reports whether t is a known check-in type
func ValidCheckInType(t CheckInType) bool {
	switch t {
	case CheckInTypeBreakfast, CheckInTypeLunch, CheckInTypeDinner, CheckInTypeGym, CheckInTypeProtein:
		return true
	}
	return false
}

// CheckIn is one submitted piece of daily evidence, reviewed out of band
type CheckIn struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	UserID     string      `json:"user_id" db:"user_id"`
	ContractID uuid.UUID   `json:"contract_id" db:"contract_id"`
	Type       CheckInType `json:"type" db:"type"`
	Status     string      `json:"status" db:"status"`
	CheckedAt  time.Time   `json:"checked_at" db:"checked_at"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// DayPlan classifies a contract day and determines its required check-ins
type DayPlan string

const (
	DayPlanWorkout        DayPlan = "workout"
	DayPlanActiveRecovery DayPlan = "active_recovery"
	DayPlanRest           DayPlan = "rest"
)

// RequiredTypes maps a day plan to the check-in types that must all be
// approved for the day to count as completed. Rest days require nothing
// and are neutral.
func (p DayPlan) RequiredTypes() []CheckInType {
	switch p {
	case DayPlanWorkout:
		return []CheckInType{CheckInTypeGym, CheckInTypeProtein}
	case DayPlanActiveRecovery:
		return []CheckInType{CheckInTypeProtein}
	default:
		return nil
	}
}

// DTOs for requests and responses

type SubmitCheckInRequest struct {
	UserID     string      `json:"user_id" validate:"required"`
	ContractID uuid.UUID   `json:"contract_id" validate:"required"`
	Type       CheckInType `json:"type" validate:"required,oneof=breakfast lunch dinner gym protein"`
	CheckedAt  *time.Time  `json:"checked_at,omitempty"`
}

type ReviewCheckInRequest struct {
	Approve bool `json:"approve"`
}
