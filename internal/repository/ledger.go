package repository

import (
	"context"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/pkg/errors"
)

// LedgerRepository appends wallet transactions under wallet/transactions.
// Entries are never updated once written.
type LedgerRepository struct {
	store store.Store
}

func NewLedgerRepository(s store.Store) *LedgerRepository {
	return &LedgerRepository{store: s}
}

// Append stores tx under a freshly generated key and returns the key.
func (r *LedgerRepository) Append(ctx context.Context, tx *domain.Transaction) (string, error) {
	tx.ID = ""
	key, err := r.store.Push(ctx, pathTransactions, tx)
	if err != nil {
		return "", errors.Wrapf(err, "Cannot append %s transaction", tx.Type)
	}
	tx.ID = key
	return key, nil
}

// Put stores tx under a key allocated earlier. Writing the same entry
// again leaves the ledger unchanged.
func (r *LedgerRepository) Put(ctx context.Context, key string, tx *domain.Transaction) error {
	tx.ID = ""
	if err := r.store.Set(ctx, store.Join(pathTransactions, key), tx); err != nil {
		return errors.Wrapf(err, "Cannot write %s transaction", tx.Type)
	}
	tx.ID = key
	return nil
}

// List returns every ledger entry with its key in ID.
func (r *LedgerRepository) List(ctx context.Context) ([]domain.Transaction, error) {
	children, err := r.store.Children(ctx, pathTransactions)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot list transactions")
	}
	decoded, err := store.DecodeChildren[domain.Transaction](children)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot decode transactions")
	}

	txs := make([]domain.Transaction, 0, len(decoded))
	for key, tx := range decoded {
		tx.ID = key
		txs = append(txs, tx)
	}
	return txs, nil
}
