package roleguard

import (
	"log/slog"
	"net/http"
	"strings"

	id "sevagate/pkg/domain"
	dErrors "sevagate/pkg/domain-errors"
	"sevagate/pkg/platform/httputil"
	"sevagate/pkg/requestcontext"
)

// Validator resolves a bearer token into a principal.
type Validator interface {
	ValidateToken(tokenString string) (requestcontext.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// resolved principal on the request context.
func RequireAuth(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			principal, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, principal)))
		})
	}
}

// RequireRoles fences a route to the listed roles. It assumes RequireAuth ran
// earlier in the chain.
func RequireRoles(logger *slog.Logger, roles ...id.Role) func(http.Handler) http.Handler {
	allowed := make(map[id.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actor := requestcontext.Actor(ctx)
			if actor.IsZero() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				logger.WarnContext(ctx, "forbidden access - role not permitted",
					"role", actor.Role,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeForbidden, "role %s may not perform this action", actor.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
