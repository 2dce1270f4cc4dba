package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dimpoz/backend/internal/contextkeys"
	"github.com/dimpoz/backend/internal/domain"
	"github.com/dimpoz/backend/internal/handler"
	"github.com/dimpoz/backend/internal/service"
)

// Auth verifies the bearer token and puts the caller's id and email in the
// request context.
func Auth(authSvc *service.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				handler.Error(w, err)
				return
			}

			claims, err := authSvc.VerifyToken(token)
			if err != nil {
				handler.Error(w, domain.ErrUnauthorized("invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.UserID, claims.Sub)
			ctx = context.WithValue(ctx, contextkeys.UserEmail, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.ErrUnauthorized("no token provided")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", domain.ErrUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}
