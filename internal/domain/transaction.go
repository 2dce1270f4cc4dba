package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types.
const (
	TxSubscription = "subscription"
	TxWithdrawal   = "withdrawal"
	TxFee          = "fee"
)

// FeeSourceWithdrawal marks the fee retained on an operator withdrawal.
const FeeSourceWithdrawal = "relworx_withdrawal_fee"

// WithdrawalFeePerMille is the share of a withdrawal kept as a fee (200/1000).
const WithdrawalFeePerMille = 200

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Transaction is an append-only wallet ledger entry. Only the fields of
// its Type are populated.
type Transaction struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`

	// subscription
	UserID                string `json:"userId,omitempty"`
	UserName              string `json:"userName,omitempty"`
	PlanName              string `json:"planName,omitempty"`
	PaymentReference      string `json:"paymentReference,omitempty"`
	InternalReference     string `json:"internalReference,omitempty"`
	ProviderTransactionID string `json:"providerTransactionId,omitempty"`

	// withdrawal
	NetAmount   int64  `json:"netAmount,omitempty"`
	Fee         int64  `json:"fee,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Reference   string `json:"reference,omitempty"`

	// fee
	Source string `json:"source,omitempty"`

	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Balance folds the ledger: subscriptions and fees credit, withdrawals
// debit their full requested amount. Order does not matter.
func Balance(txs []Transaction) int64 {
	var balance int64
	for _, tx := range txs {
		switch tx.Type {
		case TxSubscription, TxFee:
			balance += tx.Amount
		case TxWithdrawal:
			balance -= tx.Amount
		}
	}
	return balance
}

// TotalEarned sums subscription revenue only.
func TotalEarned(txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		if tx.Type == TxSubscription {
			total += tx.Amount
		}
	}
	return total
}

// SortNewestFirst orders transactions by timestamp, newest first. Ties
// fall back to the ledger key, which is time-ordered.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].ID > txs[j].ID
	})
}

// SplitWithdrawal computes the retained fee and the net amount sent out.
// The fee is rounded half up to whole shillings.
func SplitWithdrawal(amount int64) (fee, net int64, err error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	feeDec := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(WithdrawalFeePerMille)).
		Div(decimal.NewFromInt(1000)).
		Round(0)
	fee = feeDec.IntPart()
	return fee, amount - fee, nil
}

// WalletSummary is the admin wallet view.
type WalletSummary struct {
	Balance          int64         `json:"balance"`
	TotalEarned      int64         `json:"totalEarned"`
	TransactionCount int           `json:"transactionCount"`
	Transactions     []Transaction `json:"transactions"`
}

// WithdrawRequest is the validated operator withdrawal input.
type WithdrawRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

// WithdrawResult reports a completed withdrawal.
type WithdrawResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Amount      int64  `json:"amount"`
	NetAmount   int64  `json:"netAmount"`
	Fee         int64  `json:"fee"`
	PhoneNumber string `json:"phoneNumber"`
	Reference   string `json:"reference"`
}
