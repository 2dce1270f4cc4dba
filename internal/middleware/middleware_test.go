package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/contextkeys"
	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/internal/service"
	"github.com/dimpoz/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type authEnv struct {
	auth   *service.AuthService
	policy *service.AdminPolicy
	subs   *service.SubscriptionService
	subRep *repository.SubscriptionRepository
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	keys, err := store.NewKeyGenerator(1)
	require.NoError(t, err)
	st := store.NewMemoryStore(keys)
	users := repository.NewUserRepository(st)
	subRepo := repository.NewSubscriptionRepository(st)
	policy := service.NewAdminPolicy([]string{"boss@dimpoz.com"}, users)
	return &authEnv{
		auth:   service.NewAuthService("test-secret", users, policy, zap.NewNop()),
		policy: policy,
		subs:   service.NewSubscriptionService(subRepo, policy, zap.NewNop()),
		subRep: subRepo,
	}
}

func (e *authEnv) token(t *testing.T, email string) (string, string) {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), &domain.RegisterRequest{Email: email, Password: "secret123"})
	require.NoError(t, err)
	return resp.Token, resp.User.ID
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsBadHeaders(t *testing.T) {
	env := newAuthEnv(t)
	h := Auth(env.auth)(ok)

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "not-a-jwt").Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization header")
}

func TestAuthPutsIdentityInContext(t *testing.T) {
	env := newAuthEnv(t)
	token, id := env.token(t, "viewer@example.com")

	var gotID, gotEmail string
	h := Auth(env.auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = r.Context().Value(contextkeys.UserID).(string)
		gotEmail, _ = r.Context().Value(contextkeys.UserEmail).(string)
	}))
	serve(h, token)

	assert.Equal(t, id, gotID)
	assert.Equal(t, "viewer@example.com", gotEmail)
}

func TestAdminOnly(t *testing.T) {
	env := newAuthEnv(t)
	viewer, _ := env.token(t, "viewer@example.com")
	boss, _ := env.token(t, "Boss@dimpoz.com")

	var flagged bool
	h := Auth(env.auth)(AdminOnly(env.policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flagged, _ = r.Context().Value(contextkeys.IsAdmin).(bool)
	})))

	assert.Equal(t, http.StatusForbidden, serve(h, viewer).Code)
	assert.False(t, flagged)

	assert.Equal(t, http.StatusOK, serve(h, boss).Code)
	assert.True(t, flagged)
}

func TestRequireSubscription(t *testing.T) {
	env := newAuthEnv(t)
	viewer, viewerID := env.token(t, "viewer@example.com")
	boss, _ := env.token(t, "boss@dimpoz.com")
	h := Auth(env.auth)(RequireSubscription(env.subs)(ok))

	rec := serve(h, viewer)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "an active subscription is required")

	assert.Equal(t, http.StatusOK, serve(h, boss).Code, "admins bypass the guard")

	start := time.Now().Add(-time.Hour)
	require.NoError(t, env.subRep.Save(context.Background(), &domain.Subscription{
		UserID:    viewerID,
		PlanID:    "1week",
		Active:    true,
		StartDate: start,
		EndDate:   start.Add(7 * 24 * time.Hour),
	}))
	assert.Equal(t, http.StatusOK, serve(h, viewer).Code)
}

func TestRecoveryReturns500(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := serve(h, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 2, zap.NewNop())

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.1", now))
	assert.False(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.2", now), "visitors are limited independently")
	assert.True(t, rl.allow("10.0.0.1", now.Add(time.Second)))
}

func TestRateLimiterForgetsIdleVisitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 1, zap.NewNop())

	now := time.Now()
	rl.allow("10.0.0.1", now)
	rl.allow("10.0.0.2", now.Add(visitorTTL))

	rl.forget(now.Add(visitorTTL + time.Second))
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestRateLimiterMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, 1, 1, zap.NewNop()).Middleware()(ok)

	assert.Equal(t, http.StatusOK, serve(h, "").Code)
	rec := serve(h, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", extractClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", extractClientIP(req))
}
