package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AliNMackie/cofound-platform/internal/domain/auth"
)

type contextKey string

const (
	scopeKey   contextKey = "tenant_scope"
	subjectKey contextKey = "subject"
)

// BearerAuth verifies the end-user credential on every request and binds the
// resolved tenant scope to the request context. The scope travels only inside
// ctx; there is no process-wide current-tenant state, so concurrent requests
// cannot observe each other's scope.
func BearerAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r)
			if err != nil {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.VerifyUser(r.Context(), raw)
			if err != nil {
				http.Error(w, "invalid credential", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), scopeKey, claims.Tenant)
			ctx = context.WithValue(ctx, subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the bearer credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrAuthMissing
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", auth.ErrAuthMissing
	}
	return token, nil
}

// ScopeFromContext returns the tenant scope bound by BearerAuth.
func ScopeFromContext(ctx context.Context) (auth.TenantScope, error) {
	scope, ok := ctx.Value(scopeKey).(auth.TenantScope)
	if !ok || scope == "" {
		return "", errors.New("no tenant scope in context")
	}
	return scope, nil
}
