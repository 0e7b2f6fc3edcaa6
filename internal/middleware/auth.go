package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/waitroomxyz/api/internal/app/services/identity"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
)

type claimsKey struct{}

// RequireJWT rejects requests without a valid bearer token and stores the
// claims and user ID on the context.
func RequireJWT(ids *identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				denyAuth(w, apperrors.Unauthorized("missing bearer token"))
				return
			}
			claims, err := ids.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				denyAuth(w, apperrors.From(err))
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logging.WithUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the authenticated operator claims, if present.
func ClaimsFromContext(ctx context.Context) (*identity.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*identity.Claims)
	return claims, ok
}

func denyAuth(w http.ResponseWriter, svcErr *apperrors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": svcErr})
}
