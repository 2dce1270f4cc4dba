package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/payment"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// User-facing outcomes of a checkout.
const (
	msgInvalidPlan      = "Invalid plan selected"
	msgDepositFailed    = "Payment request failed"
	msgMissingReference = "Payment request incomplete - no reference received"
	msgPaymentFailed    = "Payment failed. Please try again."
	msgPaymentTimeout   = "Payment timeout. Please check your phone and try again if the payment didn't go through."
	msgUnknownPayer     = "Unknown"
	msgSettlementAbsent = "settlement not found"
)

const (
	defaultPollAttempts = 30
	defaultPollInterval = 3 * time.Second
)

// WaitFunc pauses between status polls. It returns early with ctx.Err()
// when the caller goes away.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SettlementConfig tunes the checkout flow.
type SettlementConfig struct {
	Brand        string
	PollAttempts int
	PollInterval time.Duration
}

// SettlementService turns a plan purchase into a confirmed subscription.
// Every accepted deposit is tracked as a settlement record so that a
// confirmation nobody waited for can still be settled later.
type SettlementService struct {
	gateway     payment.Gateway
	settlements *repository.SettlementRepository
	subs        *repository.SubscriptionRepository
	ledger      *repository.LedgerRepository
	keys        *store.KeyGenerator
	policy      *AdminPolicy
	cfg         SettlementConfig
	validate    *validator.Validate
	logger      *zap.Logger

	wait WaitFunc
	now  func() time.Time
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	gateway payment.Gateway,
	settlements *repository.SettlementRepository,
	subs *repository.SubscriptionRepository,
	ledger *repository.LedgerRepository,
	keys *store.KeyGenerator,
	policy *AdminPolicy,
	cfg SettlementConfig,
	logger *zap.Logger,
) *SettlementService {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &SettlementService{
		gateway:     gateway,
		settlements: settlements,
		subs:        subs,
		ledger:      ledger,
		keys:        keys,
		policy:      policy,
		cfg:         cfg,
		validate:    validator.New(),
		logger:      logger.Named("settlement"),
		wait:        sleepContext,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe charges the payer's phone for a plan and, once the gateway
// confirms, writes the subscription and its ledger entry.
func (s *SettlementService) Subscribe(ctx context.Context, userID, email string, req *domain.SubscribeRequest) (*domain.SubscribeResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	plan, ok := domain.FindPlan(req.PlanID)
	if !ok {
		return nil, domain.ErrBadRequest(msgInvalidPlan)
	}
	phone, err := domain.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("user_id", userID), zap.String("plan", plan.ID))

	deposit, err := s.gateway.Deposit(ctx, payment.DepositRequest{
		MSISDN:      phone,
		Amount:      plan.Price,
		Description: fmt.Sprintf("%s %s Subscription", s.cfg.Brand, plan.Name),
	})
	if err != nil {
		log.Warn("deposit request failed", zap.Error(err))
		return nil, domain.ErrBadGateway(msgDepositFailed, err)
	}
	if !deposit.Success {
		return nil, domain.ErrBadGateway(firstNonEmpty(deposit.Message, deposit.Error, msgDepositFailed), nil)
	}
	internalRef := deposit.InternalReference()
	if internalRef == "" {
		log.Error("deposit accepted without internal reference", zap.String("reference", deposit.Reference))
		return nil, domain.ErrBadGateway(msgMissingReference, nil)
	}

	now := s.now()
	st := &domain.Settlement{
		InternalReference: internalRef,
		UserID:            userID,
		UserEmail:         email,
		PlanID:            plan.ID,
		Amount:            plan.Price,
		PhoneNumber:       phone,
		PaymentProvider:   req.Provider,
		PaymentReference:  deposit.Reference,
		CustomerReference: deposit.Reference,
		LedgerKey:         s.keys.Next(),
		Status:            domain.SettlementPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.settlements.Save(ctx, st); err != nil {
		return nil, domain.ErrInternal("failed to record payment request", err)
	}
	log = log.With(zap.String("internal_reference", internalRef))
	log.Info("deposit initiated", zap.String("phone", domain.MaskPhone(phone)), zap.Int64("amount", plan.Price))

	detail, err := s.awaitConfirmation(ctx, log, internalRef)
	if err != nil {
		return nil, err
	}

	sub, err := s.settle(ctx, st, detail)
	if err != nil {
		log.Error("settlement failed after confirmation", zap.Error(err))
		return nil, domain.ErrInternal("payment confirmed but activation failed", err)
	}
	log.Info("subscription activated", zap.Time("end_date", sub.EndDate))

	return &domain.SubscribeResult{
		Success:           true,
		Message:           fmt.Sprintf("Payment successful! Subscribed to %s.", plan.Name),
		PlanName:          plan.Name,
		InternalReference: internalRef,
		Subscription:      sub,
	}, nil
}

// awaitConfirmation polls the gateway until it reports success or failure
// or the attempt budget runs out. Only a failure outcome touches the
// settlement record; timeouts and cancellations leave it pending.
func (s *SettlementService) awaitConfirmation(ctx context.Context, log *zap.Logger, internalRef string) (payment.StatusDetail, error) {
	for attempt := 1; attempt <= s.cfg.PollAttempts; attempt++ {
		resp, err := s.gateway.RequestStatus(ctx, internalRef)
		switch {
		case err != nil:
			log.Warn("status poll failed", zap.Int("attempt", attempt), zap.Error(err))
		case resp.Succeeded():
			return resp.Relworx, nil
		case resp.Failed():
			msg := firstNonEmpty(resp.Relworx.Message, msgPaymentFailed)
			if err := s.settlements.MarkStatus(ctx, internalRef, domain.SettlementFailed, msg, s.now()); err != nil {
				log.Error("failed to mark settlement failed", zap.Error(err))
			}
			log.Info("payment failed", zap.Int("attempt", attempt), zap.String("message", msg))
			return payment.StatusDetail{}, domain.ErrBadGateway(msg, nil)
		default:
			log.Debug("payment pending", zap.Int("attempt", attempt))
		}

		if attempt == s.cfg.PollAttempts {
			break
		}
		if err := s.wait(ctx, s.cfg.PollInterval); err != nil {
			log.Info("caller left before confirmation, settlement stays pending", zap.Error(err))
			return payment.StatusDetail{}, domain.ErrGatewayTimeout(msgPaymentTimeout)
		}
	}

	log.Warn("payment confirmation timed out", zap.Int("attempts", s.cfg.PollAttempts))
	return payment.StatusDetail{}, domain.ErrGatewayTimeout(msgPaymentTimeout)
}

// settle persists a confirmed payment. Replaying it for the same record
// rewrites identical documents: the start date is pinned to the first
// confirmation and the ledger key was allocated when the deposit began.
func (s *SettlementService) settle(ctx context.Context, st *domain.Settlement, detail payment.StatusDetail) (*domain.Subscription, error) {
	plan, ok := domain.FindPlan(st.PlanID)
	if !ok {
		return nil, fmt.Errorf("settlement %s references unknown plan %q", st.InternalReference, st.PlanID)
	}

	now := s.now()
	if st.ConfirmedAt == nil {
		st.ConfirmedAt = &now
		st.Status = domain.SettlementConfirmed
		if detail.CustomerReference != "" {
			st.CustomerReference = detail.CustomerReference
		}
		if detail.ProviderTransactionID != "" {
			st.ProviderTransactionID = detail.ProviderTransactionID
		}
		st.UpdatedAt = now
		if err := s.settlements.Save(ctx, st); err != nil {
			return nil, err
		}
	}

	start := *st.ConfirmedAt
	sub := &domain.Subscription{
		UserID:                st.UserID,
		PlanID:                plan.ID,
		PlanName:              plan.Name,
		Amount:                st.Amount,
		PhoneNumber:           st.PhoneNumber,
		PaymentProvider:       st.PaymentProvider,
		PaymentReference:      st.PaymentReference,
		InternalReference:     st.InternalReference,
		CustomerReference:     st.CustomerReference,
		ProviderTransactionID: st.ProviderTransactionID,
		StartDate:             start,
		EndDate:               domain.EndDateFor(start, plan),
		Active:                true,
		CreatedAt:             start,
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		Type:                  domain.TxSubscription,
		UserID:                st.UserID,
		UserName:              firstNonEmpty(st.UserEmail, msgUnknownPayer),
		Amount:                st.Amount,
		PlanName:              plan.Name,
		PaymentReference:      st.PaymentReference,
		InternalReference:     st.InternalReference,
		ProviderTransactionID: st.ProviderTransactionID,
		Timestamp:             start,
	}
	if err := s.ledger.Put(ctx, st.LedgerKey, tx); err != nil {
		return nil, err
	}

	st.Status = domain.SettlementSettled
	st.SettledAt = &now
	st.UpdatedAt = now
	if err := s.settlements.Save(ctx, st); err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns one settlement. Users only see their own; admins see all.
func (s *SettlementService) Get(ctx context.Context, userID, email, internalRef string) (*domain.SettlementView, error) {
	st, err := s.settlements.Find(ctx, internalRef)
	if err != nil {
		return nil, domain.ErrInternal("failed to load settlement", err)
	}
	if st == nil {
		return nil, domain.ErrNotFound(msgSettlementAbsent)
	}
	if st.UserID != userID {
		isAdmin, err := s.policy.IsAdmin(ctx, userID, email)
		if err != nil {
			return nil, domain.ErrInternal("failed to check permissions", err)
		}
		if !isAdmin {
			return nil, domain.ErrNotFound(msgSettlementAbsent)
		}
	}
	view := st.View()
	return &view, nil
}

// List returns settlements newest first, optionally filtered by status.
func (s *SettlementService) List(ctx context.Context, status string) ([]domain.SettlementView, error) {
	switch status {
	case "", domain.SettlementPending, domain.SettlementConfirmed, domain.SettlementSettled,
		domain.SettlementFailed, domain.SettlementExpired:
	default:
		return nil, domain.ErrBadRequest("unknown settlement status")
	}

	list, err := s.settlements.List(ctx, status)
	if err != nil {
		return nil, domain.ErrInternal("failed to list settlements", err)
	}
	views := make([]domain.SettlementView, len(list))
	for i := range list {
		views[i] = list[i].View()
	}
	return views, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
