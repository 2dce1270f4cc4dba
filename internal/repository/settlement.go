package repository

import (
	"context"
	"sort"
	"time"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/store"
	"github.com/dimpoz/backend/pkg/crypto"
	"github.com/pkg/errors"
)

// SettlementRepository keeps pending and finished settlements at
// settlements/{internalReference}. Phone numbers are sealed at rest.
type SettlementRepository struct {
	store store.Store
	enc   *crypto.Encryptor
}

func NewSettlementRepository(s store.Store, enc *crypto.Encryptor) *SettlementRepository {
	return &SettlementRepository{store: s, enc: enc}
}

// Save writes the whole record.
func (r *SettlementRepository) Save(ctx context.Context, s *domain.Settlement) error {
	sealed := *s
	phone, err := r.enc.EncryptString(s.PhoneNumber)
	if err != nil {
		return errors.Wrap(err, "Cannot seal settlement phone number")
	}
	sealed.PhoneNumber = phone

	if err := r.store.Set(ctx, nodePath(pathSettlements, s.InternalReference), &sealed); err != nil {
		return errors.Wrap(err, "Cannot save settlement")
	}
	return nil
}

// Find returns nil when no settlement exists for the reference.
func (r *SettlementRepository) Find(ctx context.Context, internalReference string) (*domain.Settlement, error) {
	var s domain.Settlement
	found, err := r.store.Get(ctx, nodePath(pathSettlements, internalReference), &s)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot find settlement")
	}
	if !found {
		return nil, nil
	}
	if err := r.open(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkStatus moves a settlement to status with an optional message.
func (r *SettlementRepository) MarkStatus(ctx context.Context, internalReference, status, message string, now time.Time) error {
	fields := map[string]interface{}{
		"status":    status,
		"updatedAt": now,
	}
	if message != "" {
		fields["message"] = message
	}
	if err := r.store.Update(ctx, nodePath(pathSettlements, internalReference), fields); err != nil {
		return errors.Wrapf(err, "Cannot mark settlement %s", status)
	}
	return nil
}

// List returns settlements newest first, optionally filtered by status.
func (r *SettlementRepository) List(ctx context.Context, status string) ([]domain.Settlement, error) {
	children, err := r.store.Children(ctx, pathSettlements)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot list settlements")
	}
	decoded, err := store.DecodeChildren[domain.Settlement](children)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot decode settlements")
	}

	out := make([]domain.Settlement, 0, len(decoded))
	for _, s := range decoded {
		if status != "" && s.Status != status {
			continue
		}
		if err := r.open(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *SettlementRepository) open(s *domain.Settlement) error {
	phone, err := r.enc.DecryptString(s.PhoneNumber)
	if err != nil {
		return errors.Wrapf(err, "Cannot open phone number of settlement %s", s.InternalReference)
	}
	s.PhoneNumber = phone
	return nil
}
