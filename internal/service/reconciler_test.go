package service

import (
	"context"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (e *testEnv) reconciler() *Reconciler {
	r := NewReconciler(e.settlements, e.flow, e.gw, ReconcilerConfig{
		Interval: time.Minute,
		Grace:    90 * time.Second,
		MaxAge:   24 * time.Hour,
	}, zap.NewNop())
	r.now = e.clock
	return r
}

func (e *testEnv) seedSettlement(t *testing.T, ref, status string, age time.Duration) {
	t.Helper()
	created := e.now.Add(-age)
	st := &domain.Settlement{
		InternalReference: ref,
		UserID:            "user-" + ref,
		UserEmail:         ref + "@example.com",
		PlanID:            "1day",
		Amount:            3000,
		PhoneNumber:       "+256701234567",
		PaymentProvider:   domain.ProviderAirtel,
		PaymentReference:  "pay-" + ref,
		LedgerKey:         e.keys.Next(),
		Status:            status,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	if status == domain.SettlementConfirmed {
		st.ConfirmedAt = &created
	}
	require.NoError(t, e.settlements.Save(context.Background(), st))
}

func TestReconcilerSettlesConfirmedWithoutPolling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedSettlement(t, "crashed", domain.SettlementConfirmed, time.Minute)

	report, err := env.reconciler().RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.ReconcileReport{Checked: 1, Settled: 1}, report)
	assert.Zero(t, env.gw.statusCalls)

	sub, err := env.subs.FindByUserID(ctx, "user-crashed")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.EndDate.Equal(env.now.Add(-time.Minute).Add(24*time.Hour)))
	assert.Len(t, env.ledgerEntries(t), 1)
}

func TestReconcilerPendingOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh settlement left to checkout", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedSettlement(t, "fresh", domain.SettlementPending, 10*time.Second)

		report, err := env.reconciler().RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assert.Zero(t, env.gw.statusCalls)
	})

	t.Run("late confirmation settles", func(t *testing.T) {
		env := newTestEnv(t)
		env.gw.statuses = []statusStep{{resp: successStatus()}}
		env.seedSettlement(t, "late", domain.SettlementPending, 5*time.Minute)

		report, err := env.reconciler().RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Settled)

		st, err := env.settlements.Find(ctx, "late")
		require.NoError(t, err)
		assert.Equal(t, domain.SettlementSettled, st.Status)
		assert.Equal(t, "ptx-99", st.ProviderTransactionID)

		txs := env.ledgerEntries(t)
		require.Len(t, txs, 1)
		assert.Equal(t, st.LedgerKey, txs[0].ID)
	})

	t.Run("gateway failure marks failed", func(t *testing.T) {
		env := newTestEnv(t)
		env.gw.statuses = []statusStep{{resp: failedStatus("Transaction declined")}}
		env.seedSettlement(t, "declined", domain.SettlementPending, 5*time.Minute)

		report, err := env.reconciler().RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)

		st, err := env.settlements.Find(ctx, "declined")
		require.NoError(t, err)
		assert.Equal(t, domain.SettlementFailed, st.Status)
		assert.Equal(t, "Transaction declined", st.Message)
		assert.Empty(t, env.ledgerEntries(t))
	})

	t.Run("old pending expires", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedSettlement(t, "stale", domain.SettlementPending, 25*time.Hour)
		env.seedSettlement(t, "waiting", domain.SettlementPending, time.Hour)

		report, err := env.reconciler().RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, &domain.ReconcileReport{Checked: 2, Expired: 1, Skipped: 1}, report)

		st, err := env.settlements.Find(ctx, "stale")
		require.NoError(t, err)
		assert.Equal(t, domain.SettlementExpired, st.Status)
	})
}

func TestReconcilerIgnoresFinishedSettlements(t *testing.T) {
	env := newTestEnv(t)
	env.seedSettlement(t, "done", domain.SettlementSettled, time.Hour)
	env.seedSettlement(t, "gone", domain.SettlementFailed, time.Hour)

	report, err := env.reconciler().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Zero(t, env.gw.statusCalls)
}
