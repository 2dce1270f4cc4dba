package repository

import (
	"context"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	keys, err := store.NewKeyGenerator(1)
	require.NoError(t, err)
	return store.NewMemoryStore(keys)
}

func TestSettlementPhoneIsSealedAtRest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	enc, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	repo := NewSettlementRepository(s, enc)

	now := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, &domain.Settlement{
		InternalReference: "ref/with slash",
		UserID:            "u1",
		PhoneNumber:       "+256771234567",
		Status:            domain.SettlementPending,
		CreatedAt:         now,
	}))

	var raw map[string]interface{}
	found, err := s.Get(ctx, "settlements/ref%2Fwith%20slash", &raw)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, "+256771234567", raw["phoneNumber"])

	got, err := repo.Find(ctx, "ref/with slash")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "+256771234567", got.PhoneNumber)

	require.NoError(t, repo.MarkStatus(ctx, "ref/with slash", domain.SettlementFailed, "declined", now))
	list, err := repo.List(ctx, domain.SettlementFailed)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "declined", list[0].Message)
	assert.Equal(t, "+256771234567", list[0].PhoneNumber)

	pending, err := repo.List(ctx, domain.SettlementPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLedgerPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(newTestStore(t))

	tx := &domain.Transaction{Type: domain.TxSubscription, Amount: 10000, Timestamp: time.Now().UTC()}
	require.NoError(t, repo.Put(ctx, "42", tx))
	require.NoError(t, repo.Put(ctx, "42", tx))

	_, err := repo.Append(ctx, &domain.Transaction{Type: domain.TxFee, Amount: 2000})
	require.NoError(t, err)

	txs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, int64(12000), domain.Balance(txs))
}

func TestUserEmailIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestStore(t))

	u := &domain.User{ID: "u1", Email: "Viewer@Example.com", Role: domain.RoleUser, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.FindByEmail(ctx, "viewer@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	exists, err := repo.Exists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.SetRole(ctx, "u1", domain.RoleAdmin))
	got, err = repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "Viewer@Example.com", got.Email)
}

func TestUserCreateRejectsTakenEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestStore(t))

	require.NoError(t, repo.Create(ctx, &domain.User{ID: "u1", Email: "dup@example.com"}))
	err := repo.Create(ctx, &domain.User{ID: "u2", Email: " DUP@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := repo.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, got)

	owner, err := repo.FindByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "u1", owner.ID)
}

func TestSubscriptionDeactivateKeepsFields(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepository(newTestStore(t))

	end := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, &domain.Subscription{UserID: "u1", PlanID: "1day", EndDate: end, Active: true}))
	require.NoError(t, repo.Deactivate(ctx, "u1"))

	sub, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.False(t, sub.Active)
	assert.Equal(t, "1day", sub.PlanID)
	assert.True(t, sub.EndDate.Equal(end))

	none, err := repo.FindByUserID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, none)
}
