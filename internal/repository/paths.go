package repository

import (
	"net/url"
	"strings"

	"github.com/dimpoz/backend/internal/store"
)

// Root paths of the document tree.
const (
	pathSubscriptions = "subscriptions"
	pathTransactions  = "wallet/transactions"
	pathSettlements   = "settlements"
	pathUsers         = "users"
	pathUserEmails    = "user_emails"
	pathCarousel      = "carousel"
)

// segment makes an external identifier safe to use as one path segment.
func segment(id string) string {
	return url.PathEscape(id)
}

func emailKey(email string) string {
	return segment(strings.ToLower(strings.TrimSpace(email)))
}

func nodePath(root, id string) string {
	return store.Join(root, segment(id))
}

// unescapeKeys turns path segments back into the identifiers they encode.
func unescapeKeys[T any](in map[string]T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		if id, err := url.PathUnescape(k); err == nil {
			k = id
		}
		out[k] = v
	}
	return out
}
