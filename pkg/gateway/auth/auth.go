// Package auth verifies session tokens and carries the authenticated
// principal through request contexts.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/conversai-app/conversai/pkg/core"
)

// Principal identifies an authenticated user.
type Principal struct {
	UserID string
}

type ctxKey struct{}

// WithPrincipal attaches the principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom extracts the principal placed by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// ParseBearer extracts the token from an Authorization header.
func ParseBearer(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", core.NewAuthenticationError("missing bearer token")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", core.NewAuthenticationError("missing bearer token")
	}
	return token, nil
}

// Verifier validates HS256 session tokens minted by the frontend's auth
// provider with the shared session secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a verifier over the shared session secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks signature and expiry and returns the token's principal.
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Principal{}, core.NewAuthenticationError("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, core.NewAuthenticationError("invalid token claims")
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		// Some issuers put the user id in the standard subject claim.
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return Principal{}, core.NewAuthenticationError("token has no user id")
	}
	return Principal{UserID: userID}, nil
}
