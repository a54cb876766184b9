package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trailhub/trailhub/pkg/observability"
)

// Gate returns middleware that runs once per inbound request, before any
// handler. It extracts a bearer token, verifies it, and resolves the
// subject into an Identity attached to the request context.
//
// The gate swallows every authentication failure into "no identity":
// a missing header, a malformed or expired token, an unknown subject, and
// a deactivated account all continue as anonymous. Rejection is the
// policy engine's job, so public routes still work without credentials.
func Gate(tokens *TokenService, creds CredentialStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolve(r.Context(), tokens, creds, r.Header.Get("Authorization"))
			if id != nil {
				r = r.WithContext(SetIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve turns an Authorization header value into an Identity, or nil
// when the request should proceed anonymously. It never mutates the
// credential store.
func resolve(ctx context.Context, tokens *TokenService, creds CredentialStore, header string) *Identity {
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		observability.AuthResolutionsTotal.WithLabelValues("anonymous").Inc()
		return nil
	}

	subject, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		// Malformed, tampered, and expired tokens are indistinguishable
		// from here on: the request continues with no identity.
		slog.Debug("token verification failed")
		observability.AuthResolutionsTotal.WithLabelValues("invalid_token").Inc()
		return nil
	}

	cred, err := creds.FindByUsername(ctx, subject)
	if err != nil {
		if !errors.Is(err, ErrCredentialNotFound) {
			slog.Error("credential lookup failed", "error", err)
		}
		observability.AuthResolutionsTotal.WithLabelValues("unknown_subject").Inc()
		return nil
	}

	// A valid token for a deactivated account must never populate a
	// usable identity; deactivation implicitly invalidates every
	// outstanding token.
	if !cred.Active {
		slog.Debug("token for inactive account", "subject", subject)
		observability.AuthResolutionsTotal.WithLabelValues("inactive").Inc()
		return nil
	}

	observability.AuthResolutionsTotal.WithLabelValues("ok").Inc()
	return &Identity{
		ID:       cred.ID,
		Username: cred.Username,
		Roles:    cred.Roles,
		Active:   cred.Active,
	}
}
