package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenUser is the user name reported for requests carrying the bearer token.
const TokenUser = "token"

// TokenAuthEngine accepts requests that present a static bearer token.
type TokenAuthEngine struct {
	Token string
}

// NewTokenAuthEngine creates a new TokenAuthEngine accepting token.
func NewTokenAuthEngine(token string) *TokenAuthEngine {
	return &TokenAuthEngine{
		Token: token,
	}
}

// AuthenticateRequest checks the Authorization header for the bearer token.
func (e *TokenAuthEngine) AuthenticateRequest(ctx context.Context, r *http.Request) (*User, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || e.Token == "" {
		return nil, nil
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(e.Token)) != 1 {
		return nil, nil
	}

	return &User{
		Name: TokenUser,
	}, nil
}
