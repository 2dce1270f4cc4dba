package middleware

import (
	"net/http"

	"github.com/dimpoz/backend/internal/contextkeys"
	"github.com/dimpoz/backend/internal/handler"
	"github.com/dimpoz/backend/internal/service"
)

// RequireSubscription blocks playback for users without an active pass.
// Admins always pass. Must be used AFTER Auth middleware.
func RequireSubscription(subs *service.SubscriptionService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := r.Context().Value(contextkeys.UserID).(string)
			email, _ := r.Context().Value(contextkeys.UserEmail).(string)

			ok, err := subs.HasAccess(r.Context(), userID, email)
			if err != nil {
				handler.Error(w, err)
				return
			}
			if !ok {
				handler.JSON(w, http.StatusPaymentRequired, map[string]string{"error": "an active subscription is required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
