package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	customError "github.com/fitpact/deposit-engine/pkg/errors"
	"github.com/fitpact/deposit-engine/pkg/response"
)

// newValidator builds a validator with decimal comparison rules so DTOs
// can declare tags like `decimal_gt=0` on shopspring decimal fields.
func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("decimal_gt", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return value.GreaterThan(bound)
	})

	_ = v.RegisterValidation("decimal_gte", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return value.GreaterThanOrEqual(bound)
	})

	return v
}

// writeServiceError maps the ledger's error taxonomy onto HTTP statuses:
// validation-class errors are 400, balance conflicts and duplicate
// finalization are 409, missing records are 404.
func writeServiceError(w http.ResponseWriter, err error) {
	var businessErr *customError.BusinessError
	if !errors.As(err, &businessErr) {
		response.InternalServerError(w, "Unexpected error", err)
		return
	}

	switch businessErr.Code {
	case customError.ErrCodeInvalidAmount,
		customError.ErrCodeNotRefundable,
		customError.ErrCodeContractNotActive,
		customError.ErrCodeDepositNotActive:
		response.ErrorWithCode(w, http.StatusBadRequest, businessErr.Code, businessErr.Message, businessErr.Err)
	case customError.ErrCodeInsufficientBalance,
		customError.ErrCodeExceedsAvailable,
		customError.ErrCodeAlreadyFinalized:
		response.ErrorWithCode(w, http.StatusConflict, businessErr.Code, businessErr.Message, businessErr.Err)
	case customError.ErrCodeDepositNotFound,
		customError.ErrCodeContractNotFound,
		customError.ErrCodeCheckInNotFound:
		response.ErrorWithCode(w, http.StatusNotFound, businessErr.Code, businessErr.Message, businessErr.Err)
	default:
		response.ErrorWithCode(w, http.StatusInternalServerError, businessErr.Code, businessErr.Message, businessErr.Err)
	}
}
