// Package payment talks to the mobile-money collection gateway.
package payment

import (
	"context"
	"strings"
)

// Gateway defines the operations used by the settlement and withdrawal flows.
type Gateway interface {
	// Deposit asks the payer to approve a collection on their phone.
	Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error)
	// RequestStatus reports the state of a deposit by internal reference.
	RequestStatus(ctx context.Context, internalReference string) (*StatusResponse, error)
	// Withdraw sends money to a mobile-money account.
	Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResponse, error)
}

// Status values reported in the nested relworx object.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// completedMarker must appear in the status message of a finished collection.
const completedMarker = "completed successfully"

// DepositRequest is the body of POST /api/deposit.
type DepositRequest struct {
	MSISDN      string `json:"msisdn"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// DepositResponse is the reply to a deposit request.
type DepositResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Relworx   struct {
		InternalReference string `json:"internal_reference"`
	} `json:"relworx"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InternalReference returns the gateway-side correlation id, if any.
func (r *DepositResponse) InternalReference() string {
	return strings.TrimSpace(r.Relworx.InternalReference)
}

// StatusDetail is the nested provider state of a collection.
type StatusDetail struct {
	Status                string `json:"status"`
	RequestStatus         string `json:"request_status"`
	Message               string `json:"message"`
	CustomerReference     string `json:"customer_reference,omitempty"`
	ProviderTransactionID string `json:"provider_transaction_id,omitempty"`
}

// StatusResponse is the reply of GET /api/request-status.
type StatusResponse struct {
	Success bool         `json:"success"`
	Relworx StatusDetail `json:"relworx"`
	Error   string       `json:"error,omitempty"`
}

// Succeeded reports a confirmed collection. All three conditions must hold.
func (r *StatusResponse) Succeeded() bool {
	return r.Success &&
		r.Relworx.Status == StatusSuccess &&
		strings.Contains(r.Relworx.Message, completedMarker)
}

// Failed reports a terminal failure of the collection.
func (r *StatusResponse) Failed() bool {
	return r.Relworx.RequestStatus == StatusFailed || r.Relworx.Status == StatusFailed
}

// WithdrawRequest is the body of POST /api/withdraw.
type WithdrawRequest struct {
	MSISDN      string `json:"msisdn"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// WithdrawResponse is the reply to a withdrawal.
type WithdrawResponse struct {
	Success           bool   `json:"success"`
	InternalReference string `json:"internal_reference,omitempty"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}
