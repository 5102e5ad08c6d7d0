// Package identity resolves bearer tokens into verified identity
// claims. Two issuers are accepted: the managed identity provider and
// this service's own HMAC-signed tokens, so service-to-service and test
// tokens verify without a provider round trip.
package identity

import (
	"context"
	"log/slog"

	"github.com/volkanerene/chartizy-backend2/pkg/jwt"
)

// Claims is the normalized identity produced by token verification.
// It lives for one request and is never persisted.
type Claims struct {
	SubjectID string
	Email     string
}

// Provider is the external identity service this system delegates
// primary verification and password auth to.
type Provider interface {
	// VerifyToken checks a provider-issued access token and returns the
	// subject it belongs to.
	VerifyToken(ctx context.Context, token string) (Claims, error)

	// SignIn exchanges email/password credentials for an access token.
	SignIn(ctx context.Context, email, password string) (Session, error)

	// SignUp registers a new user. The returned session token may be
	// empty when the provider requires email confirmation first.
	SignUp(ctx context.Context, email, password string) (Session, error)
}

// Session is a provider-issued authentication result.
type Session struct {
	AccessToken string
	Claims      Claims
}

// Verifier validates bearer tokens against both issuers.
type Verifier struct {
	provider Provider
	local    *jwt.Service
	log      *slog.Logger
}

// NewVerifier builds a verifier from the identity provider client and
// the local token service.
func NewVerifier(provider Provider, local *jwt.Service, log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Verifier{provider: provider, local: local, log: log}
}

// Verify resolves a bearer token to identity claims. The provider is
// consulted first; if it rejects or is unreachable, the token is
// checked against the local signing secret. A false result means the
// caller is unauthenticated, which is a normal outcome, not an error.
func (v *Verifier) Verify(ctx context.Context, token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}

	claims, err := v.provider.VerifyToken(ctx, token)
	if err == nil && claims.SubjectID != "" && claims.Email != "" {
		return claims, true
	}

	local, err := v.local.Parse(token)
	if err != nil || local.Subject == "" {
		return Claims{}, false
	}

	return Claims{SubjectID: local.Subject, Email: local.Email}, true
}
