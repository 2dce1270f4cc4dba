package middleware

import (
	"context"
	"net/http"

	"github.com/dimpoz/backend/internal/contextkeys"
	"github.com/dimpoz/backend/internal/handler"
	"github.com/dimpoz/backend/internal/service"
	"go.uber.org/zap"
)

// AdminOnly lets the request through when the admin policy accepts the
// authenticated user. Must be used AFTER Auth middleware.
func AdminOnly(policy *service.AdminPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := r.Context().Value(contextkeys.UserID).(string)
			email, _ := r.Context().Value(contextkeys.UserEmail).(string)

			ok, err := policy.IsAdmin(r.Context(), userID, email)
			if err != nil {
				zap.L().Error("admin policy check failed", zap.String("user_id", userID), zap.Error(err))
				handler.JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			if !ok {
				handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: admin access required"})
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.IsAdmin, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
