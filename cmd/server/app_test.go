package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/config"
	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func (c *apiClient) do(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (c *apiClient) register(email string) string {
	c.t.Helper()
	var resp domain.LoginResponse
	code := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret123",
	}, &resp)
	require.Equal(c.t, http.StatusCreated, code)
	return resp.Token
}

func newTestAPI(t *testing.T) (*apiClient, store.Store) {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:         "test-secret",
		EncryptionKey:     "0123456789abcdef0123456789abcdef",
		StoreBackend:      config.BackendMemory,
		GatewayMode:       config.GatewayMock,
		AdminEmails:       []string{"boss@dimpoz.com"},
		BrandName:         "DIMPOZ",
		PollAttempts:      3,
		PollInterval:      time.Millisecond,
		ReconcileInterval: time.Minute,
		SettlementMaxAge:  time.Hour,
	}
	keys, err := store.NewKeyGenerator(1)
	require.NoError(t, err)
	st := store.NewMemoryStore(keys)

	a, err := newApp(cfg, zap.NewNop(), st, keys, payment.NewMockGateway())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &apiClient{t: t, handler: a.Router(ctx)}, st
}

func TestPublicRoutes(t *testing.T) {
	api, _ := newTestAPI(t)

	var health map[string]interface{}
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "ok", health["store"])

	var plans []domain.Plan
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/plans", "", nil, &plans))
	assert.Len(t, plans, 5)

	var plan domain.Plan
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/plans/1week", "", nil, &plan))
	assert.Equal(t, int64(10000), plan.Price)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/plans/forever", "", nil, nil))

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/catalog/podcasts", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/subscription", "", nil, nil))
}

func TestSubscribeThenWatch(t *testing.T) {
	api, st := newTestAPI(t)
	require.NoError(t, st.Set(context.Background(), "movies/m1", domain.Content{
		Title:      "Lion Heart",
		StreamLink: "https://drive.google.com/file/d/abc123/view",
	}))
	token := api.register("viewer@example.com")

	assert.Equal(t, http.StatusPaymentRequired, api.do(http.MethodGet, "/api/watch/movies/m1", token, nil, nil))

	var bad map[string]string
	code := api.do(http.MethodPost, "/api/subscribe", token, domain.SubscribeRequest{
		PlanID: "1day", PhoneNumber: "0201234567", Provider: "mtn",
	}, &bad)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Please enter a valid Ugandan phone number (e.g., 0771234567)", bad["error"])

	var res domain.SubscribeResult
	code = api.do(http.MethodPost, "/api/subscribe", token, domain.SubscribeRequest{
		PlanID: "1day", PhoneNumber: "0771234567", Provider: "mtn",
	}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1 Day Pass", res.PlanName)

	var status domain.SubscriptionStatus
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/subscription", token, nil, &status))
	assert.True(t, status.Active)

	var settlement domain.SettlementView
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/settlements/"+res.InternalReference, token, nil, &settlement))
	assert.Equal(t, domain.SettlementSettled, settlement.Status)

	var pb domain.Playback
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/watch/movies/m1", token, nil, &pb))
	assert.Equal(t, "https://drive.google.com/file/d/abc123/preview", pb.EmbedURL)
}

func TestAdminRoutes(t *testing.T) {
	api, _ := newTestAPI(t)
	viewer := api.register("viewer@example.com")
	boss := api.register("boss@dimpoz.com")

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/admin/wallet", viewer, nil, nil))

	var me domain.UserResponse
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/auth/me", boss, nil, &me))
	assert.True(t, me.IsAdmin)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/subscribe", viewer, domain.SubscribeRequest{
		PlanID: "1month", PhoneNumber: "0701234567", Provider: "airtel",
	}, nil))

	var wallet domain.WalletSummary
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/wallet", boss, nil, &wallet))
	assert.Equal(t, int64(25000), wallet.Balance)

	var withdrawal domain.WithdrawResult
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/admin/wallet/withdraw", boss,
		domain.WithdrawRequest{Amount: 10000, PhoneNumber: "0771234567"}, &withdrawal))
	assert.Equal(t, int64(8000), withdrawal.NetAmount)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/wallet", boss, nil, &wallet))
	assert.Equal(t, int64(17000), wallet.Balance)
	assert.Equal(t, 3, wallet.TransactionCount)

	var users []domain.AdminUserView
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/users", boss, nil, &users))
	require.Len(t, users, 2)

	var viewerID string
	for _, u := range users {
		if u.Email == "viewer@example.com" {
			viewerID = u.ID
			require.NotNil(t, u.Subscription)
			assert.Equal(t, "1 Month Pass", u.Subscription.Plan)
		}
	}
	assert.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/admin/users/"+viewerID+"/role", boss,
		domain.UpdateRoleRequest{Role: domain.RoleAdmin}, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/stats", viewer, nil, nil))

	var settlements []domain.SettlementView
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/admin/settlements?status=settled", boss, nil, &settlements))
	assert.Len(t, settlements, 1)
	assert.Equal(t, "+25670****567", settlements[0].PhoneNumber)

	var report domain.ReconcileReport
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/admin/settlements/reconcile", boss, nil, &report))
	assert.Zero(t, report.Checked)
}

func TestPollWindowCoversSlowGateway(t *testing.T) {
	cfg := &config.Config{PollAttempts: 30, PollInterval: 3 * time.Second, GatewayTimeout: 20 * time.Second}
	assert.Equal(t, 93*time.Second+600*time.Second, pollWindow(cfg))

	cfg.GatewayTimeout = 0
	assert.Equal(t, 93*time.Second, pollWindow(cfg))
}
