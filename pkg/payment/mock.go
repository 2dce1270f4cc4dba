package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockGateway approves everything. Deposits confirm on the first status
// poll. It backs local development when no gateway credentials exist.
type MockGateway struct {
	mu       sync.Mutex
	deposits map[string]DepositRequest
}

func NewMockGateway() *MockGateway {
	return &MockGateway{deposits: make(map[string]DepositRequest)}
}

func (g *MockGateway) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	ref := "mock-" + uuid.New().String()
	g.mu.Lock()
	g.deposits[ref] = req
	g.mu.Unlock()

	resp := &DepositResponse{Success: true, Reference: uuid.New().String()}
	resp.Relworx.InternalReference = ref
	return resp, nil
}

func (g *MockGateway) RequestStatus(ctx context.Context, internalReference string) (*StatusResponse, error) {
	g.mu.Lock()
	_, ok := g.deposits[internalReference]
	g.mu.Unlock()

	if !ok {
		return &StatusResponse{
			Success: false,
			Relworx: StatusDetail{RequestStatus: StatusFailed, Message: "Unknown request reference"},
		}, nil
	}
	return &StatusResponse{
		Success: true,
		Relworx: StatusDetail{
			Status:                StatusSuccess,
			RequestStatus:         StatusSuccess,
			Message:               "Request completed successfully.",
			ProviderTransactionID: "mock-tx-" + internalReference,
		},
	}, nil
}

func (g *MockGateway) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawResponse, error) {
	return &WithdrawResponse{Success: true, InternalReference: "mock-" + uuid.New().String()}, nil
}
