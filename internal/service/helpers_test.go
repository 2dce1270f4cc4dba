package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/crypto"
	"github.com/dimpoz/backend/pkg/payment"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type statusStep struct {
	resp *payment.StatusResponse
	err  error
}

// fakeGateway replays scripted answers and records every call. The last
// status step repeats once the script runs out.
type fakeGateway struct {
	mu sync.Mutex

	depositResp *payment.DepositResponse
	depositErr  error
	statuses    []statusStep

	withdrawResp *payment.WithdrawResponse
	withdrawErr  error

	deposits    []payment.DepositRequest
	statusCalls int
	withdrawals []payment.WithdrawRequest
}

func (g *fakeGateway) Deposit(ctx context.Context, req payment.DepositRequest) (*payment.DepositResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deposits = append(g.deposits, req)
	return g.depositResp, g.depositErr
}

func (g *fakeGateway) RequestStatus(ctx context.Context, ref string) (*payment.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if len(g.statuses) == 0 {
		return pendingStatus(), nil
	}
	i := g.statusCalls - 1
	if i >= len(g.statuses) {
		i = len(g.statuses) - 1
	}
	return g.statuses[i].resp, g.statuses[i].err
}

func (g *fakeGateway) Withdraw(ctx context.Context, req payment.WithdrawRequest) (*payment.WithdrawResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.withdrawals = append(g.withdrawals, req)
	return g.withdrawResp, g.withdrawErr
}

func acceptedDeposit(internalRef string) *payment.DepositResponse {
	resp := &payment.DepositResponse{Success: true, Reference: "cust-ref-1"}
	resp.Relworx.InternalReference = internalRef
	return resp
}

func pendingStatus() *payment.StatusResponse {
	return &payment.StatusResponse{
		Success: true,
		Relworx: payment.StatusDetail{Status: payment.StatusPending, RequestStatus: payment.StatusPending},
	}
}

func successStatus() *payment.StatusResponse {
	return &payment.StatusResponse{
		Success: true,
		Relworx: payment.StatusDetail{
			Status:                payment.StatusSuccess,
			RequestStatus:         payment.StatusSuccess,
			Message:               "Request completed successfully.",
			CustomerReference:     "cust-ref-2",
			ProviderTransactionID: "ptx-99",
		},
	}
}

func failedStatus(msg string) *payment.StatusResponse {
	return &payment.StatusResponse{
		Success: false,
		Relworx: payment.StatusDetail{Status: payment.StatusFailed, RequestStatus: payment.StatusFailed, Message: msg},
	}
}

type testEnv struct {
	store       *store.MemoryStore
	keys        *store.KeyGenerator
	gw          *fakeGateway
	settlements *repository.SettlementRepository
	subs        *repository.SubscriptionRepository
	ledger      *repository.LedgerRepository
	users       *repository.UserRepository
	policy      *AdminPolicy
	flow        *SettlementService

	now   time.Time
	waits []time.Duration
}

func newTestEnv(t *testing.T, adminEmails ...string) *testEnv {
	t.Helper()
	keys, err := store.NewKeyGenerator(1)
	require.NoError(t, err)
	enc, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	env := &testEnv{
		store: store.NewMemoryStore(keys),
		keys:  keys,
		gw:    &fakeGateway{depositResp: acceptedDeposit("int-ref-1")},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.settlements = repository.NewSettlementRepository(env.store, enc)
	env.subs = repository.NewSubscriptionRepository(env.store)
	env.ledger = repository.NewLedgerRepository(env.store)
	env.users = repository.NewUserRepository(env.store)
	env.policy = NewAdminPolicy(adminEmails, env.users)

	env.flow = NewSettlementService(env.gw, env.settlements, env.subs, env.ledger, keys, env.policy,
		SettlementConfig{Brand: "DIMPOZ", PollAttempts: 30, PollInterval: 3 * time.Second}, zap.NewNop())
	env.flow.now = env.clock
	env.flow.wait = func(ctx context.Context, d time.Duration) error {
		env.waits = append(env.waits, d)
		return ctx.Err()
	}
	return env
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) ledgerEntries(t *testing.T) []domain.Transaction {
	t.Helper()
	txs, err := e.ledger.List(context.Background())
	require.NoError(t, err)
	return txs
}
