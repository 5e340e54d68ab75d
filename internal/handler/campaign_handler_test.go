package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/middleware"
	"registry-be/internal/registry"
	"registry-be/internal/service"
	"registry-be/internal/treasury"
	"registry-be/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret  = "test-secret"
	creator     = "0xc0ffee0000000000000000000000000000000001"
	participant = "0xdecaf00000000000000000000000000000000002"
)

type handlerFixture struct {
	router *chi.Mux
	bank   *treasury.Bank
}

func setupHandler(t *testing.T) *handlerFixture {
	t.Helper()

	bank := treasury.NewBank(zap.NewNop())
	engine := registry.New(treasury.NewRouter(bank, bank), zap.NewNop())
	svc := service.NewCampaignService(engine, nil, nil, zap.NewNop())
	h := NewCampaignHandler(svc)

	log := &logger.Logger{Logger: zap.NewNop()}
	auth := middleware.Auth(testSecret, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/campaigns", h.ListCampaigns)
		r.Get("/campaigns/{campaignID}", h.GetCampaign)
		r.Get("/campaigns/{campaignID}/participation/{address}", h.GetParticipation)
		r.Get("/users/{address}/earnings", h.GetUserEarnings)
		r.Get("/users/{address}/campaigns", h.GetUserCompletedCampaigns)
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/campaigns", h.CreateCampaign)
			r.Post("/campaigns/{campaignID}/fund", h.FundCampaign)
			r.Post("/campaigns/{campaignID}/complete", h.CompleteCampaign)
			r.Post("/campaigns/{campaignID}/toggle", h.ToggleCampaignStatus)
			r.Post("/campaigns/{campaignID}/withdraw", h.WithdrawUnusedFunds)
		})
	})

	return &handlerFixture{router: r, bank: bank}
}

func (f *handlerFixture) do(t *testing.T, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		token, err := middleware.IssueToken(caller, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func createRequestBody(funding string) CreateCampaignRequest {
	return CreateCampaignRequest{
		MetadataURI:     "ipfs://QmCampaign",
		CampaignType:    "video",
		RewardToken:     domain.NativeToken,
		RewardAmount:    "10",
		MaxParticipants: 3,
		ExpiresAt:       time.Now().Add(24 * time.Hour).Unix(),
		InitialFunding:  funding,
	}
}

func (f *handlerFixture) createCampaign(t *testing.T, funding string) uint64 {
	t.Helper()
	f.bank.Deposit(creator, big.NewInt(1000))

	rec := f.do(t, http.MethodPost, "/api/v1/campaigns", creator, createRequestBody(funding))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		CampaignID uint64 `json:"campaign_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.CampaignID
}

func TestCreateCampaign(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")
	assert.Equal(t, uint64(1), id)
}

func TestCreateCampaign_RequiresAuth(t *testing.T) {
	f := setupHandler(t)
	rec := f.do(t, http.MethodPost, "/api/v1/campaigns", "", createRequestBody("30"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateCampaign_Validation(t *testing.T) {
	f := setupHandler(t)
	f.bank.Deposit(creator, big.NewInt(1000))

	tests := []struct {
		name   string
		mutate func(*CreateCampaignRequest)
	}{
		{name: "bad type", mutate: func(r *CreateCampaignRequest) { r.CampaignType = "raffle" }},
		{name: "bad amount", mutate: func(r *CreateCampaignRequest) { r.RewardAmount = "ten" }},
		{name: "negative amount", mutate: func(r *CreateCampaignRequest) { r.RewardAmount = "-5" }},
		{name: "empty metadata", mutate: func(r *CreateCampaignRequest) { r.MetadataURI = "" }},
		{name: "zero participants", mutate: func(r *CreateCampaignRequest) { r.MaxParticipants = 0 }},
		{name: "past expiry", mutate: func(r *CreateCampaignRequest) { r.ExpiresAt = time.Now().Add(-time.Hour).Unix() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := createRequestBody("30")
			tt.mutate(&body)
			rec := f.do(t, http.MethodPost, "/api/v1/campaigns", creator, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestGetCampaign(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%d", id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var campaign struct {
		ID           uint64 `json:"id"`
		Creator      string `json:"creator"`
		RewardAmount string `json:"reward_amount"`
		TotalFunded  string `json:"total_funded"`
		IsActive     bool   `json:"is_active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
	assert.Equal(t, id, campaign.ID)
	assert.Equal(t, creator, campaign.Creator)
	assert.Equal(t, "10", campaign.RewardAmount)
	assert.Equal(t, "30", campaign.TotalFunded)
	assert.True(t, campaign.IsActive)
}

func TestGetCampaign_NotFound(t *testing.T) {
	f := setupHandler(t)
	rec := f.do(t, http.MethodGet, "/api/v1/campaigns/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCampaign_InvalidID(t *testing.T) {
	f := setupHandler(t)
	rec := f.do(t, http.MethodGet, "/api/v1/campaigns/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteCampaign(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), participant, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Reward string `json:"reward"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10", resp.Reward)
	assert.Equal(t, big.NewInt(10), f.bank.Balance(participant))

	// Second attempt conflicts.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), participant, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCompleteCampaign_CreatorForbidden(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), creator, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFundCampaign(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/fund", id), creator, FundCampaignRequest{Amount: "40"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var campaign struct {
		TotalFunded string `json:"total_funded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &campaign))
	assert.Equal(t, "70", campaign.TotalFunded)
}

func TestFundCampaign_ZeroAmount(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/fund", id), creator, FundCampaignRequest{Amount: "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleCampaignStatus(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/toggle", id), creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		IsActive bool `json:"is_active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsActive)

	// Completion against a paused campaign conflicts.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), participant, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestToggleCampaignStatus_NotCreator(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/toggle", id), participant, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithdrawUnusedFunds(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "100")

	// One completion pays 10, leaving 90 escrowed with two open slots.
	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), participant, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Withdrawal is locked while the campaign is active and unexpired.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/withdraw", id), creator, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Deactivate, then withdraw: 2 unfilled slots reserve a fee of
	// 2 * 10 * 250 / 10000 = 0 (integer floor), so the full 90 returns.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/toggle", id), creator, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/withdraw", id), creator, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Withdrawn string `json:"withdrawn"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "90", resp.Withdrawn)
}

func TestWithdraw_NotCreator(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/withdraw", id), participant, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetParticipation(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")
	f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), participant, nil)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%d/participation/%s", id, participant), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Participated bool `json:"participated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Participated)
}

func TestGetUserEarningsAndCampaigns(t *testing.T) {
	f := setupHandler(t)
	id := f.createCampaign(t, "30")
	f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/complete", id), participant, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/users/"+participant+"/earnings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var earnings struct {
		TotalEarnings string `json:"total_earnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &earnings))
	assert.Equal(t, "10", earnings.TotalEarnings)

	rec = f.do(t, http.MethodGet, "/api/v1/users/"+participant+"/campaigns", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed struct {
		Campaigns []uint64 `json:"campaigns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, []uint64{id}, completed.Campaigns)
}

func TestListCampaigns(t *testing.T) {
	f := setupHandler(t)
	f.createCampaign(t, "30")
	f.createCampaign(t, "30")
	f.createCampaign(t, "30")

	rec := f.do(t, http.MethodGet, "/api/v1/campaigns?start=2&count=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Campaigns []json.RawMessage `json:"campaigns"`
		Counter   uint64            `json:"counter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Campaigns, 2)
	assert.Equal(t, uint64(3), resp.Counter)
}

func TestListCampaigns_InvalidParams(t *testing.T) {
	f := setupHandler(t)

	rec := f.do(t, http.MethodGet, "/api/v1/campaigns?start=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/campaigns?count=1000", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_RejectsBadToken(t *testing.T) {
	f := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", bytes.NewBufferString("{}"))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", bytes.NewBufferString("{}"))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
