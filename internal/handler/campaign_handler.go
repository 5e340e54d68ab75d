package handler

import (
	"encoding/json"
	stderrors "errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/middleware"
	"registry-be/internal/service"
	apperrors "registry-be/pkg/errors"

	"github.com/go-chi/chi/v5"
)

const defaultPageSize = 20

type CampaignHandler struct {
	campaignService *service.CampaignService
}

func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// CreateCampaignRequest is the POST /campaigns body.
type CreateCampaignRequest struct {
	MetadataURI     string `json:"metadata_uri"`
	CampaignType    string `json:"campaign_type"`
	RewardToken     string `json:"reward_token"`
	RewardAmount    string `json:"reward_amount"`
	MaxParticipants uint64 `json:"max_participants"`
	ExpiresAt       int64  `json:"expires_at"`
	InitialFunding  string `json:"initial_funding,omitempty"`
}

// CreateCampaign handles POST /api/v1/campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.CallerFromContext(ctx)
	if caller == "" {
		h.respondAppError(w, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondAppError(w, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	params, appErr := h.buildCreateParams(&req)
	if appErr != nil {
		h.respondAppError(w, appErr)
		return
	}

	id, err := h.campaignService.CreateCampaign(ctx, caller, *params)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"campaign_id": id,
	})
}

func (h *CampaignHandler) buildCreateParams(req *CreateCampaignRequest) (*domain.CreateCampaignParams, *apperrors.AppError) {
	campaignType, err := domain.ParseCampaignType(req.CampaignType)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid campaign type", map[string]interface{}{
			"campaign_type": req.CampaignType,
		})
	}

	reward, err := domain.ParseAmount(req.RewardAmount)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid reward amount", map[string]interface{}{
			"reward_amount": req.RewardAmount,
		})
	}

	funding := big.NewInt(0)
	if req.InitialFunding != "" {
		if funding, err = domain.ParseAmount(req.InitialFunding); err != nil {
			return nil, apperrors.NewValidationError("Invalid initial funding", map[string]interface{}{
				"initial_funding": req.InitialFunding,
			})
		}
	}

	token := req.RewardToken
	if token == "" {
		token = domain.NativeToken
	}

	return &domain.CreateCampaignParams{
		MetadataURI:     req.MetadataURI,
		CampaignType:    campaignType,
		RewardToken:     token,
		RewardAmount:    reward,
		MaxParticipants: req.MaxParticipants,
		ExpiresAt:       time.Unix(req.ExpiresAt, 0).UTC(),
		InitialFunding:  funding,
	}, nil
}

// GetCampaign handles GET /api/v1/campaigns/{campaignID}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	campaign, err := h.campaignService.GetCampaign(r.Context(), id)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, campaign)
}

// ListCampaigns handles GET /api/v1/campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	start := uint64(1)
	if s := r.URL.Query().Get("start"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.respondAppError(w, apperrors.NewValidationError("Invalid start parameter", nil))
			return
		}
		start = v
	}

	count := defaultPageSize
	if s := r.URL.Query().Get("count"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 100 {
			h.respondAppError(w, apperrors.NewValidationError("Invalid count parameter", nil))
			return
		}
		count = v
	}

	campaigns := h.campaignService.GetCampaigns(r.Context(), start, count)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"counter":   h.campaignService.CampaignCounter(r.Context()),
	})
}

// FundCampaignRequest is the POST /campaigns/{id}/fund body.
type FundCampaignRequest struct {
	Amount string `json:"amount"`
}

// FundCampaign handles POST /api/v1/campaigns/{campaignID}/fund
func (h *CampaignHandler) FundCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.CallerFromContext(ctx)
	if caller == "" {
		h.respondAppError(w, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	var req FundCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondAppError(w, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respondAppError(w, apperrors.NewValidationError("Invalid amount", nil))
		return
	}

	if err := h.campaignService.FundCampaign(ctx, caller, id, amount); err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	campaign, err := h.campaignService.GetCampaign(ctx, id)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}
	h.respondJSON(w, http.StatusOK, campaign)
}

// CompleteCampaign handles POST /api/v1/campaigns/{campaignID}/complete
func (h *CampaignHandler) CompleteCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.CallerFromContext(ctx)
	if caller == "" {
		h.respondAppError(w, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	reward, err := h.campaignService.CompleteCampaign(ctx, caller, id)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"participant": caller,
		"reward":      reward.String(),
	})
}

// ToggleCampaignStatus handles POST /api/v1/campaigns/{campaignID}/toggle
func (h *CampaignHandler) ToggleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.CallerFromContext(ctx)
	if caller == "" {
		h.respondAppError(w, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	active, err := h.campaignService.ToggleCampaignStatus(ctx, caller, id)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"is_active":   active,
	})
}

// WithdrawUnusedFunds handles POST /api/v1/campaigns/{campaignID}/withdraw
func (h *CampaignHandler) WithdrawUnusedFunds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := middleware.CallerFromContext(ctx)
	if caller == "" {
		h.respondAppError(w, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	amount, err := h.campaignService.WithdrawUnusedFunds(ctx, caller, id)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"withdrawn":   amount.String(),
	})
}

// GetParticipation handles GET /api/v1/campaigns/{campaignID}/participation/{address}
func (h *CampaignHandler) GetParticipation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	address := strings.ToLower(chi.URLParam(r, "address"))
	if address == "" {
		h.respondAppError(w, apperrors.NewValidationError("Address is required", nil))
		return
	}

	participated := h.campaignService.HasParticipated(r.Context(), id, address)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id":  id,
		"address":      address,
		"participated": participated,
	})
}

// GetCampaignEvents handles GET /api/v1/campaigns/{campaignID}/events
func (h *CampaignHandler) GetCampaignEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.respondAppError(w, apperrors.NewValidationError("Invalid limit parameter", nil))
			return
		}
		limit = v
	}

	events, err := h.campaignService.GetEvents(r.Context(), id, limit)
	if err != nil {
		h.respondAppError(w, toAppError(err))
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"events":      events,
	})
}

// GetUserEarnings handles GET /api/v1/users/{address}/earnings
func (h *CampaignHandler) GetUserEarnings(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(chi.URLParam(r, "address"))
	if address == "" {
		h.respondAppError(w, apperrors.NewValidationError("Address is required", nil))
		return
	}

	total := h.campaignService.GetUserEarnings(r.Context(), address)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":        address,
		"total_earnings": total.String(),
	})
}

// GetUserCompletedCampaigns handles GET /api/v1/users/{address}/campaigns
func (h *CampaignHandler) GetUserCompletedCampaigns(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(chi.URLParam(r, "address"))
	if address == "" {
		h.respondAppError(w, apperrors.NewValidationError("Address is required", nil))
		return
	}

	ids := h.campaignService.GetUserCompletedCampaigns(r.Context(), address)
	if ids == nil {
		ids = []uint64{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"campaigns": ids,
	})
}

func (h *CampaignHandler) campaignID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "campaignID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		h.respondAppError(w, apperrors.NewValidationError("Invalid campaign id", map[string]interface{}{
			"campaign_id": raw,
		}))
		return 0, false
	}
	return id, true
}

func (h *CampaignHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *CampaignHandler) respondAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	json.NewEncoder(w).Encode(response)
}

// toAppError maps ledger errors onto the HTTP error envelope.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, domain.ErrCampaignNotFound):
		return apperrors.NewNotFoundError("Campaign not found")
	case stderrors.Is(err, domain.ErrEmptyMetadataURI),
		stderrors.Is(err, domain.ErrInvalidCampaignType),
		stderrors.Is(err, domain.ErrZeroReward),
		stderrors.Is(err, domain.ErrZeroParticipants),
		stderrors.Is(err, domain.ErrExpiryNotFuture),
		stderrors.Is(err, domain.ErrZeroFunding),
		stderrors.Is(err, domain.ErrTokenInitialFunding):
		return apperrors.NewValidationError(err.Error(), nil)
	case stderrors.Is(err, domain.ErrNotCreator),
		stderrors.Is(err, domain.ErrCreatorCannotParticipate):
		return apperrors.NewAuthorizationError(err.Error())
	case stderrors.Is(err, domain.ErrCampaignInactive),
		stderrors.Is(err, domain.ErrCampaignExpired),
		stderrors.Is(err, domain.ErrCampaignFull),
		stderrors.Is(err, domain.ErrAlreadyParticipated),
		stderrors.Is(err, domain.ErrInsufficientFunding),
		stderrors.Is(err, domain.ErrWithdrawLocked):
		return apperrors.NewPreconditionError(err.Error())
	case domain.IsTransferError(err):
		return apperrors.NewTransferError("Value transfer failed, operation rolled back", err)
	default:
		return apperrors.NewInternalError("Unexpected error", err)
	}
}
