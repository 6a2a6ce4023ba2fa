package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/auth"
)

// ContextKey is the type for context keys used by middleware.
type ContextKey string

const (
	// ClaimsContextKey is the context key for the verified access token claims.
	ClaimsContextKey ContextKey = "access_claims"

	callerContextKey ContextKey = "audit_caller"
)

type callerSlot struct {
	id string
}

func withCallerSlot(ctx context.Context, slot *callerSlot) context.Context {
	return context.WithValue(ctx, callerContextKey, slot)
}

// TokenVerifier verifies access tokens.
type TokenVerifier interface {
	Verify(accessToken string) (*auth.AccessClaims, error)
}

// AuthMiddleware validates bearer access tokens and enforces a route's permission.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   zerolog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(verifier TokenVerifier, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger.With().Str("middleware", "auth").Logger(),
	}
}

// Require wraps next so it only runs for callers holding perm.
func (m *AuthMiddleware) Require(perm auth.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.logger.Debug().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Missing Authorization header")
			writeStatus(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			m.logger.Debug().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid Authorization header format")
			writeStatus(w, http.StatusUnauthorized, "invalid Authorization format (expected 'Bearer <token>')")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid access token")
			writeStatus(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if slot, ok := r.Context().Value(callerContextKey).(*callerSlot); ok {
			slot.id = claims.Subject
		}

		if !auth.Grants(claims.Permissions, perm) {
			m.logger.Warn().
				Str("token_id", claims.Subject).
				Str("path", r.URL.Path).
				Str("required_permission", string(perm)).
				Msg("Permission denied")
			writeStatus(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims retrieves the verified claims from the request context.
// Returns nil for unauthenticated routes.
func GetClaims(ctx context.Context) *auth.AccessClaims {
	claims, _ := ctx.Value(ClaimsContextKey).(*auth.AccessClaims)
	return claims
}
