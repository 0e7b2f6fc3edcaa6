package middleware

import (
	"context"
	"net/http"

	"github.com/waitroomxyz/api/internal/app/domain/project"
	apperrors "github.com/waitroomxyz/api/internal/errors"
	"github.com/waitroomxyz/api/internal/logging"
)

const apiKeyHeader = "X-API-Key"

// ProjectResolver maps a public API key to its project.
type ProjectResolver interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*project.Project, error)
}

type projectKey struct{}

// RequireAPIKey authenticates widget requests by public API key and stores
// the resolved project on the context.
func RequireAPIKey(resolver ProjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				denyAuth(w, apperrors.Unauthorized("missing API key"))
				return
			}
			proj, err := resolver.GetByAPIKey(r.Context(), key)
			if err != nil {
				denyAuth(w, apperrors.From(err))
				return
			}
			ctx := context.WithValue(r.Context(), projectKey{}, proj)
			ctx = logging.WithTenant(ctx, proj.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProjectFromContext returns the project resolved from the API key.
func ProjectFromContext(ctx context.Context) (*project.Project, bool) {
	proj, ok := ctx.Value(projectKey{}).(*project.Project)
	return proj, ok
}
