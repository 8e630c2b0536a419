package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fitpact/deposit-engine/internal/domain"
	"github.com/fitpact/deposit-engine/internal/service"
	customError "github.com/fitpact/deposit-engine/pkg/errors"
	"github.com/fitpact/deposit-engine/pkg/response"
)

type DepositHandler struct {
	deposits  *service.DepositService
	contracts *service.ContractService
	validator *validator.Validate
}

func NewDepositHandler(deposits *service.DepositService, contracts *service.ContractService) *DepositHandler {
	return &DepositHandler{
		deposits:  deposits,
		contracts: contracts,
		validator: newValidator(),
	}
}

// CreateDeposit handles POST /api/v1/deposits
func (h *DepositHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	deposit, intent, err := h.deposits.Create(r.Context(), &request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, &domain.CreateDepositResponse{Deposit: deposit, Payment: intent})
}

// GetDeposit handles GET /api/v1/deposits/{depositId}
func (h *DepositHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "depositId")
	if !ok {
		return
	}

	deposit, err := h.deposits.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, deposit)
}

// GetUsage handles GET /api/v1/deposits/{depositId}/usage
func (h *DepositHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "depositId")
	if !ok {
		return
	}

	entries, err := h.deposits.GetUsage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, entries)
}

// RequestRefund handles POST /api/v1/deposits/{depositId}/refund
func (h *DepositHandler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "depositId")
	if !ok {
		return
	}

	var request domain.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	deposit, err := h.deposits.RequestRefund(r.Context(), id, request.Amount, request.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, deposit)
}

// GetStats handles GET /api/v1/users/{userId}/deposits/stats
func (h *DepositHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		response.BadRequest(w, "Missing user ID", nil)
		return
	}

	stats, err := h.deposits.GetStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, stats)
}

// PaymentCallback handles POST /api/v1/payments/callback. The gateway
// delivers at least once, so a duplicate confirmation is acknowledged as
// success rather than surfaced as an error.
func (h *DepositHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var callback domain.PaymentCallback
	if err := json.NewDecoder(r.Body).Decode(&callback); err != nil {
		response.BadRequest(w, "Invalid callback body", err)
		return
	}

	if err := h.validator.Struct(&callback); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	paidAt := callback.PaymentTime
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	deposit, err := h.deposits.ConfirmPayment(r.Context(), callback.OrderID, callback.TransactionID, paidAt, callback.Status)
	if err != nil {
		if errors.Is(err, customError.ErrAlreadyFinalized) {
			response.Success(w, map[string]string{"result": "already processed"})
			return
		}
		writeServiceError(w, err)
		return
	}

	// A confirmed deposit payment activates its linked contract
	if callback.Status == domain.PaymentStatusSuccess && deposit.ContractID != nil {
		if _, err := h.contracts.Activate(r.Context(), *deposit.ContractID); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	response.Success(w, deposit)
}

// RefundCallback handles POST /api/v1/refunds/callback
func (h *DepositHandler) RefundCallback(w http.ResponseWriter, r *http.Request) {
	var callback domain.RefundCallback
	if err := json.NewDecoder(r.Body).Decode(&callback); err != nil {
		response.BadRequest(w, "Invalid callback body", err)
		return
	}

	if err := h.validator.Struct(&callback); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	deposit, err := h.deposits.HandleRefundResult(r.Context(), callback.DepositID, callback.Status)
	if err != nil {
		if errors.Is(err, customError.ErrAlreadyFinalized) {
			response.Success(w, map[string]string{"result": "already processed"})
			return
		}
		writeServiceError(w, err)
		return
	}

	response.Success(w, deposit)
}

func parseID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
