package service

import (
	"context"
	"sync"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/pkg/payment"
	"go.uber.org/zap"
)

// ReconcilerConfig tunes the background settlement sweep.
type ReconcilerConfig struct {
	Interval time.Duration
	// Grace is how long a fresh settlement is left to the checkout that
	// created it before the sweep polls it.
	Grace time.Duration
	// MaxAge is when a still-pending settlement is given up as expired.
	MaxAge time.Duration
}

// Reconciler resolves settlements whose checkout never finished: the
// payer confirmed after the poll budget ran out, the client went away,
// or the process stopped between confirmation and the writes.
type Reconciler struct {
	settlements *repository.SettlementRepository
	flow        *SettlementService
	gateway     payment.Gateway
	cfg         ReconcilerConfig
	logger      *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewReconciler creates a reconciler that settles through flow.
func NewReconciler(
	settlements *repository.SettlementRepository,
	flow *SettlementService,
	gateway payment.Gateway,
	cfg ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Reconciler{
		settlements: settlements,
		flow:        flow,
		gateway:     gateway,
		cfg:         cfg,
		logger:      logger.Named("reconciler"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a pass immediately and then on every interval until ctx ends.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		r.runLogged(ctx)
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runLogged(ctx)
			}
		}
	}()
}

func (r *Reconciler) runLogged(ctx context.Context) {
	report, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("reconcile pass failed", zap.Error(err))
		return
	}
	if report.Settled+report.Failed+report.Expired > 0 {
		r.logger.Info("reconcile pass finished",
			zap.Int("checked", report.Checked),
			zap.Int("settled", report.Settled),
			zap.Int("failed", report.Failed),
			zap.Int("expired", report.Expired),
			zap.Int("skipped", report.Skipped),
		)
	}
}

// RunOnce examines every open settlement once. Passes never overlap.
func (r *Reconciler) RunOnce(ctx context.Context) (*domain.ReconcileReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	open, err := r.openSettlements(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.ReconcileReport{}
	for i := range open {
		if ctx.Err() != nil {
			break
		}
		st := &open[i]
		report.Checked++

		log := r.logger.With(zap.String("internal_reference", st.InternalReference), zap.String("status", st.Status))
		outcome, err := r.reconcile(ctx, st)
		if err != nil {
			log.Error("cannot reconcile settlement", zap.Error(err))
			report.Skipped++
			continue
		}
		switch outcome {
		case domain.SettlementSettled:
			log.Info("late settlement completed")
			report.Settled++
		case domain.SettlementFailed:
			report.Failed++
		case domain.SettlementExpired:
			log.Warn("settlement expired without confirmation")
			report.Expired++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

func (r *Reconciler) openSettlements(ctx context.Context) ([]domain.Settlement, error) {
	pending, err := r.settlements.List(ctx, domain.SettlementPending)
	if err != nil {
		return nil, err
	}
	confirmed, err := r.settlements.List(ctx, domain.SettlementConfirmed)
	if err != nil {
		return nil, err
	}
	return append(confirmed, pending...), nil
}

// reconcile returns the status the settlement ended in, or "" when it
// was left alone.
func (r *Reconciler) reconcile(ctx context.Context, st *domain.Settlement) (string, error) {
	if st.Status == domain.SettlementConfirmed {
		if _, err := r.flow.settle(ctx, st, payment.StatusDetail{}); err != nil {
			return "", err
		}
		return domain.SettlementSettled, nil
	}

	now := r.now()
	age := now.Sub(st.CreatedAt)
	if age < r.cfg.Grace {
		return "", nil
	}

	resp, err := r.gateway.RequestStatus(ctx, st.InternalReference)
	switch {
	case err != nil:
		r.logger.Warn("status poll failed", zap.String("internal_reference", st.InternalReference), zap.Error(err))
	case resp.Succeeded():
		if _, err := r.flow.settle(ctx, st, resp.Relworx); err != nil {
			return "", err
		}
		return domain.SettlementSettled, nil
	case resp.Failed():
		msg := firstNonEmpty(resp.Relworx.Message, msgPaymentFailed)
		if err := r.settlements.MarkStatus(ctx, st.InternalReference, domain.SettlementFailed, msg, now); err != nil {
			return "", err
		}
		return domain.SettlementFailed, nil
	}

	if age >= r.cfg.MaxAge {
		if err := r.settlements.MarkStatus(ctx, st.InternalReference, domain.SettlementExpired, "No confirmation received", now); err != nil {
			return "", err
		}
		return domain.SettlementExpired, nil
	}
	return "", nil
}
