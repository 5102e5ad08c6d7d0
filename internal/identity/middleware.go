package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/volkanerene/chartizy-backend2/internal/account"
	"github.com/volkanerene/chartizy-backend2/internal/httpx"
)

type ctxKey struct{}

// CurrentAccount returns the account injected by the middleware, or nil
// on unauthenticated requests behind OptionalAuth.
func CurrentAccount(ctx context.Context) *account.Account {
	a, _ := ctx.Value(ctxKey{}).(*account.Account)
	return a
}

func withAccount(ctx context.Context, a *account.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// Middleware authenticates requests and resolves the caller's account.
type Middleware struct {
	verifier *Verifier
	resolver *account.Resolver
}

// NewMiddleware wires the verifier and resolver into HTTP middleware.
func NewMiddleware(verifier *Verifier, resolver *account.Resolver) *Middleware {
	return &Middleware{verifier: verifier, resolver: resolver}
}

// RequireAuth rejects requests without a valid bearer token. On success
// the resolved account is available via CurrentAccount.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := m.verify(r)
		if !ok {
			httpx.JSONError(w, httpx.ErrUnauthenticated)
			return
		}

		a := m.resolver.Resolve(r.Context(), claims.SubjectID, claims.Email)
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), a)))
	})
}

// OptionalAuth resolves the account when a valid token is present and
// passes the request through untouched otherwise. Used by public
// endpoints that personalize output for signed-in callers.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := m.verify(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		a := m.resolver.Resolve(r.Context(), claims.SubjectID, claims.Email)
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), a)))
	})
}

func (m *Middleware) verify(r *http.Request) (Claims, bool) {
	token := bearerToken(r)
	if token == "" {
		return Claims{}, false
	}
	return m.verifier.Verify(r.Context(), token)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
