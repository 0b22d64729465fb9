package auth

import (
	"context"
	"strings"

	"github.com/nullstream-oss/apkvault/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the data extracted from a verified ID/access token and
// stored in the request context by the auth middleware.
type Identity struct {
	Subject string
	IsAdmin bool
}

// IdentityFromContext extracts the authenticated identity from context.
// Returns nil if no identity is attached.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// ContextWithIdentity attaches an authenticated identity to ctx.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// ExtractBearerToken extracts the token from an Authorization header.
// Expected format: "Bearer <token>".
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", domain.NewAppError(domain.CodeUnauthorized, "authorization header required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.NewAppError(domain.CodeUnauthorized, "invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", domain.NewAppError(domain.CodeUnauthorized, "token required")
	}

	return token, nil
}
