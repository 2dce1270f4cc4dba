package domain

import "time"

// Settlement states. A settlement starts pending once the gateway has
// accepted the deposit request.
const (
	SettlementPending   = "pending"
	SettlementConfirmed = "confirmed"
	SettlementSettled   = "settled"
	SettlementFailed    = "failed"
	SettlementExpired   = "expired"
)

// Settlement tracks one deposit from initiation to persisted subscription,
// keyed by the gateway's internal reference. LedgerKey is allocated up
// front so replaying the settle step rewrites the same ledger entry.
type Settlement struct {
	InternalReference     string     `json:"internalReference"`
	UserID                string     `json:"userId"`
	UserEmail             string     `json:"userEmail"`
	PlanID                string     `json:"planId"`
	Amount                int64      `json:"amount"`
	PhoneNumber           string     `json:"phoneNumber"`
	PaymentProvider       string     `json:"paymentProvider"`
	PaymentReference      string     `json:"paymentReference"`
	CustomerReference     string     `json:"customerReference,omitempty"`
	ProviderTransactionID string     `json:"providerTransactionId,omitempty"`
	LedgerKey             string     `json:"ledgerKey"`
	Status                string     `json:"status"`
	Message               string     `json:"message,omitempty"`
	ConfirmedAt           *time.Time `json:"confirmedAt,omitempty"`
	SettledAt             *time.Time `json:"settledAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Open reports whether the settlement may still be settled.
func (s *Settlement) Open() bool {
	return s.Status == SettlementPending || s.Status == SettlementConfirmed
}

// SettlementView is the API shape of a settlement. The phone number is masked.
type SettlementView struct {
	InternalReference string     `json:"internalReference"`
	UserID            string     `json:"userId"`
	PlanID            string     `json:"planId"`
	PlanName          string     `json:"planName"`
	Amount            int64      `json:"amount"`
	PhoneNumber       string     `json:"phoneNumber"`
	PaymentProvider   string     `json:"paymentProvider"`
	Status            string     `json:"status"`
	Message           string     `json:"message,omitempty"`
	SettledAt         *time.Time `json:"settledAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// View builds the API shape.
func (s *Settlement) View() SettlementView {
	return SettlementView{
		InternalReference: s.InternalReference,
		UserID:            s.UserID,
		PlanID:            s.PlanID,
		PlanName:          PlanName(s.PlanID),
		Amount:            s.Amount,
		PhoneNumber:       MaskPhone(s.PhoneNumber),
		PaymentProvider:   s.PaymentProvider,
		Status:            s.Status,
		Message:           s.Message,
		SettledAt:         s.SettledAt,
		CreatedAt:         s.CreatedAt,
	}
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
}
