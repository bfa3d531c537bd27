package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/leadflow/internal/http/response"
	"github.com/diagnosis/leadflow/internal/service"
	"github.com/diagnosis/leadflow/pkg/logger"
)

type ctxKey string

const CtxIdentity ctxKey = "identity"

// Authenticator is the part of the auth service the middleware needs.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Identity, error)
}

// RequireAdmin rejects requests without a valid bearer token. A missing
// token is 401; a present but unusable one is 403.
func RequireAdmin(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authn.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				switch {
				case errors.Is(err, service.ErrNoToken):
					response.Unauthorized(w, "No authentication token provided")
				case errors.Is(err, service.ErrExpiredToken):
					response.InvalidToken(w, response.CodeExpiredToken)
				default:
					logger.DebugContext(r.Context(), "Rejected token", "error", err)
					response.InvalidToken(w, response.CodeInvalidToken)
				}
				return
			}

			ctx := context.WithValue(r.Context(), CtxIdentity, identity)
			ctx = context.WithValue(ctx, logger.AdminKey, identity.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity returns the caller stored by RequireAdmin, or nil.
func Identity(r *http.Request) *service.Identity {
	v, _ := r.Context().Value(CtxIdentity).(*service.Identity)
	return v
}

// bearerToken returns the second whitespace separated word of the
// Authorization header, or "" when there is none.
func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
