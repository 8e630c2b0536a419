package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fitpact/deposit-engine/internal/domain"
	"github.com/fitpact/deposit-engine/internal/service"
	"github.com/fitpact/deposit-engine/pkg/response"
)

type ContractHandler struct {
	contracts *service.ContractService
	progress  *service.ProgressService
	validator *validator.Validate
}

func NewContractHandler(contracts *service.ContractService, progress *service.ProgressService) *ContractHandler {
	return &ContractHandler{
		contracts: contracts,
		progress:  progress,
		validator: newValidator(),
	}
}

// CreateContract handles POST /api/v1/contracts
func (h *ContractHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	result, err := h.contracts.Create(r.Context(), &request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, result)
}

// GetContract handles GET /api/v1/contracts/{contractId}
func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "contractId")
	if !ok {
		return
	}

	contract, err := h.contracts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, contract)
}

// SettleContract handles POST /api/v1/contracts/{contractId}/settle
func (h *ContractHandler) SettleContract(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "contractId")
	if !ok {
		return
	}

	var request domain.SettleContractRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	contract, err := h.contracts.Settle(r.Context(), id, request.FinalStatus)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, contract)
}

// EvaluateDay handles POST /api/v1/contracts/{contractId}/evaluate?date=YYYY-MM-DD
// Without a date parameter it evaluates today, which can only yield
// completed, neutral or pending.
func (h *ContractHandler) EvaluateDay(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "contractId")
	if !ok {
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(w, "Invalid date, expected YYYY-MM-DD", err)
			return
		}
		date = parsed
	}

	result, err := h.progress.EvaluateDay(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}

// SubmitCheckIn handles POST /api/v1/checkins
func (h *ContractHandler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	var request domain.SubmitCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	checkIn, err := h.progress.SubmitCheckIn(r.Context(), &request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, checkIn)
}

// ReviewCheckIn handles POST /api/v1/checkins/{checkInId}/review
func (h *ContractHandler) ReviewCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "checkInId")
	if !ok {
		return
	}

	var request domain.ReviewCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	checkIn, err := h.progress.ReviewCheckIn(r.Context(), id, request.Approve)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, checkIn)
}
