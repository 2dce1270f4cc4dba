package service

import (
	"context"
	"strings"

	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/repository"
)

// AdminPolicy decides who may use the operator endpoints. An identity is
// an admin when its email is on the configured allow-list or its stored
// role is admin. It is evaluated per request so role changes apply at once.
type AdminPolicy struct {
	emails map[string]struct{}
	users  *repository.UserRepository
}

// NewAdminPolicy creates a policy over the allow-list and the users registry.
func NewAdminPolicy(emails []string, users *repository.UserRepository) *AdminPolicy {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return &AdminPolicy{emails: set, users: users}
}

// Listed reports whether email is on the allow-list.
func (p *AdminPolicy) Listed(email string) bool {
	_, ok := p.emails[normalizeEmail(email)]
	return ok
}

// IsAdmin checks the allow-list first and falls back to the stored role.
func (p *AdminPolicy) IsAdmin(ctx context.Context, userID, email string) (bool, error) {
	if p.Listed(email) {
		return true, nil
	}
	if userID == "" {
		return false, nil
	}
	u, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil && u.Role == domain.RoleAdmin, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
