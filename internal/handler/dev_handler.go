package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"registry-be/internal/container"
	"registry-be/internal/domain"
	"registry-be/internal/middleware"
	apperrors "registry-be/pkg/errors"
)

// DevHandler exposes development-only helpers: a faucet crediting the native
// bank, a treasury snapshot, and a sign-in endpoint that mints tokens for an
// arbitrary address. Mounted only when ENVIRONMENT=development.
type DevHandler struct {
	container *container.Container
}

func NewDevHandler(container *container.Container) *DevHandler {
	return &DevHandler{
		container: container,
	}
}

// FaucetRequest is the POST /dev/faucet body.
type FaucetRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Faucet handles POST /api/v1/dev/faucet
func (h *DevHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondAppError(w, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	address := strings.ToLower(req.Address)
	if address == "" {
		h.respondAppError(w, apperrors.NewValidationError("Address is required", nil))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil || amount.Sign() == 0 {
		h.respondAppError(w, apperrors.NewValidationError("Invalid amount", nil))
		return
	}

	h.container.Bank.Deposit(address, amount)
	h.container.GetLogger().WithFields(map[string]interface{}{
		"address": address,
		"amount":  amount.String(),
	}).Info("Faucet deposit")

	h.respondJSON(w, http.StatusOK, map[string]string{
		"address": address,
		"balance": h.container.Bank.Balance(address).String(),
	})
}

// Treasury handles GET /api/v1/dev/treasury
func (h *DevHandler) Treasury(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.URL.Query().Get("address"))

	response := map[string]string{
		"escrowed": h.container.Bank.Escrowed().String(),
	}
	if address != "" {
		response["address"] = address
		response["balance"] = h.container.Bank.Balance(address).String()
	}

	h.respondJSON(w, http.StatusOK, response)
}

// SignInRequest is the POST /dev/signin body.
type SignInRequest struct {
	Address string `json:"address"`
}

// SignIn handles POST /api/v1/dev/signin. It mints a bearer token for the
// given address without any ownership proof.
func (h *DevHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondAppError(w, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	token, err := middleware.IssueToken(req.Address, h.container.GetConfig().AuthJWTSecret, 24*time.Hour)
	if err != nil {
		h.respondAppError(w, apperrors.NewInternalError("Failed to issue token", err))
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

func (h *DevHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *DevHandler) respondAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	json.NewEncoder(w).Encode(response)
}
