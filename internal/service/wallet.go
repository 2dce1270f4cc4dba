package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
	"github.com/dimpoz/backend/pkg/payment"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	msgInvalidAmount       = "Invalid amount"
	msgInsufficientBalance = "Insufficient balance"
	msgWithdrawalFailed    = "Withdrawal failed"
)

// errInvalidWithdrawPhone omits the example number shown at checkout.
var errInvalidWithdrawPhone = domain.ErrValidation("Please enter a valid Ugandan phone number")

// WalletService projects the platform balance from the ledger and pays
// out operator withdrawals.
type WalletService struct {
	gateway  payment.Gateway
	ledger   *repository.LedgerRepository
	brand    string
	validate *validator.Validate
	logger   *zap.Logger

	// withdrawals in this process run one at a time so two payouts
	// cannot both pass the balance check.
	mu  sync.Mutex
	now func() time.Time
}

// NewWalletService creates a new WalletService.
func NewWalletService(gateway payment.Gateway, ledger *repository.LedgerRepository, brand string, logger *zap.Logger) *WalletService {
	return &WalletService{
		gateway:  gateway,
		ledger:   ledger,
		brand:    brand,
		validate: validator.New(),
		logger:   logger.Named("wallet"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Balance folds the whole ledger.
func (s *WalletService) Balance(ctx context.Context) (int64, error) {
	txs, err := s.ledger.List(ctx)
	if err != nil {
		return 0, domain.ErrInternal("failed to load transactions", err)
	}
	return domain.Balance(txs), nil
}

// Summary returns the balance, revenue and the ledger newest first.
func (s *WalletService) Summary(ctx context.Context) (*domain.WalletSummary, error) {
	txs, err := s.ledger.List(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to load transactions", err)
	}
	domain.SortNewestFirst(txs)
	return &domain.WalletSummary{
		Balance:          domain.Balance(txs),
		TotalEarned:      domain.TotalEarned(txs),
		TransactionCount: len(txs),
		Transactions:     txs,
	}, nil
}

// Withdraw sends amount minus the fee to phone and records the full
// amount as a debit plus the fee as a separate credit.
func (s *WalletService) Withdraw(ctx context.Context, req *domain.WithdrawRequest) (*domain.WithdrawResult, error) {
	fee, net, err := domain.SplitWithdrawal(req.Amount)
	if errors.Is(err, domain.ErrInvalidAmount) {
		return nil, domain.ErrValidation(msgInvalidAmount)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.Balance(ctx)
	if err != nil {
		return nil, err
	}
	if req.Amount > balance {
		return nil, domain.ErrBadRequest(msgInsufficientBalance)
	}

	phone, err := domain.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, errInvalidWithdrawPhone
	}

	log := s.logger.With(zap.Int64("amount", req.Amount), zap.String("phone", domain.MaskPhone(phone)))

	resp, err := s.gateway.Withdraw(ctx, payment.WithdrawRequest{
		MSISDN:      phone,
		Amount:      net,
		Description: fmt.Sprintf("%s Admin Withdrawal", s.brand),
	})
	if err != nil {
		log.Warn("withdraw request failed", zap.Error(err))
		return nil, domain.ErrBadGateway(msgWithdrawalFailed, err)
	}
	if !resp.Success {
		return nil, domain.ErrBadGateway(firstNonEmpty(resp.Error, msgWithdrawalFailed), nil)
	}

	now := s.now()
	withdrawal := &domain.Transaction{
		Type:        domain.TxWithdrawal,
		Amount:      req.Amount,
		NetAmount:   net,
		Fee:         fee,
		PhoneNumber: phone,
		Reference:   resp.InternalReference,
		Timestamp:   now,
	}
	if _, err := s.ledger.Append(ctx, withdrawal); err != nil {
		log.Error("payout sent but withdrawal not recorded", zap.String("reference", resp.InternalReference), zap.Error(err))
		return nil, domain.ErrInternal("withdrawal sent but could not be recorded", err)
	}
	feeTx := &domain.Transaction{
		Type:      domain.TxFee,
		Amount:    fee,
		Source:    domain.FeeSourceWithdrawal,
		Timestamp: now,
	}
	if _, err := s.ledger.Append(ctx, feeTx); err != nil {
		log.Error("payout sent but fee not recorded", zap.String("reference", resp.InternalReference), zap.Error(err))
		return nil, domain.ErrInternal("withdrawal sent but fee could not be recorded", err)
	}

	log.Info("withdrawal completed", zap.Int64("net", net), zap.Int64("fee", fee), zap.String("reference", resp.InternalReference))
	return &domain.WithdrawResult{
		Success:     true,
		Message:     fmt.Sprintf("Withdrawal successful! UGX %d sent to %s. Fee: UGX %d", net, phone, fee),
		Amount:      req.Amount,
		NetAmount:   net,
		Fee:         fee,
		PhoneNumber: phone,
		Reference:   resp.InternalReference,
	}, nil
}
