package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/observability"
)

// Access classifies what a matched route requires of the caller.
type Access int

const (
	// Public routes are always allowed, identity or not.
	Public Access = iota

	// Authenticated routes require a non-empty security context.
	Authenticated

	// RequireRole routes require the identity to carry a specific role.
	RequireRole

	// Deny routes are always rejected regardless of identity.
	Deny
)

// RouteRule maps a path pattern to a required access level. Patterns may
// contain at most one '*' wildcard, which matches any (possibly empty)
// run of characters.
type RouteRule struct {
	Pattern string
	Access  Access
	Role    Role // set only for RequireRole
}

// PublicRoute builds a rule that always allows the matched path.
func PublicRoute(pattern string) RouteRule {
	return RouteRule{Pattern: pattern, Access: Public}
}

// AuthenticatedRoute builds a rule that requires any valid identity.
func AuthenticatedRoute(pattern string) RouteRule {
	return RouteRule{Pattern: pattern, Access: Authenticated}
}

// RoleRoute builds a rule that requires a specific role.
func RoleRoute(pattern string, role Role) RouteRule {
	return RouteRule{Pattern: pattern, Access: RequireRole, Role: role}
}

// DenyRoute builds a rule that rejects the matched path outright.
func DenyRoute(pattern string) RouteRule {
	return RouteRule{Pattern: pattern, Access: Deny}
}

// Policy evaluates the static route-policy table: rules are checked in
// definition order, the first matching pattern wins, and a path matching
// no rule is denied. Matching is independent of the HTTP verb.
type Policy struct {
	rules []RouteRule
}

// NewPolicy creates a policy engine over the given ordered rules.
func NewPolicy(rules ...RouteRule) *Policy {
	return &Policy{rules: rules}
}

// DefaultRules is the route table for the trailhub API surface.
func DefaultRules() []RouteRule {
	return []RouteRule{
		PublicRoute("/healthz"),
		PublicRoute("/metrics"),
		PublicRoute("/api/auth/*"),
		RoleRoute("/api/users", RoleAdmin),
		AuthenticatedRoute("/api/*"),
		AuthenticatedRoute("/ws/*"),
	}
}

// Evaluate applies the coarse-grained route layer to a path and the
// identity resolved by the gate (nil for anonymous requests). It returns
// nil when the request may proceed, ErrUnauthenticated when the route
// needs an identity and none is present, and ErrForbidden when an
// identity is present but insufficient or the route is denied.
func (p *Policy) Evaluate(path string, id *Identity) error {
	for _, rule := range p.rules {
		if !matchPattern(rule.Pattern, path) {
			continue
		}
		switch rule.Access {
		case Public:
			return nil
		case Authenticated:
			if id == nil {
				return ErrUnauthenticated
			}
			return nil
		case RequireRole:
			if id == nil {
				return ErrUnauthenticated
			}
			if !id.HasRole(rule.Role) {
				return ErrForbidden
			}
			return nil
		case Deny:
			if id == nil {
				return ErrUnauthenticated
			}
			return ErrForbidden
		}
	}

	// Default deny: an unlisted path never falls through to allow.
	if id == nil {
		return ErrUnauthenticated
	}
	return ErrForbidden
}

// AuthorizeOwner applies the fine-grained ownership layer for mutating
// operations on owned resources. It assumes the route layer already
// passed; a mismatch between the acting identity and the resource's
// recorded owner is "you are someone, but not the right someone" and maps
// to a forbidden outcome, never an unauthenticated one.
func (p *Policy) AuthorizeOwner(id *Identity, ownerID int) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.ID != ownerID {
		return ErrNotOwner
	}
	return nil
}

// Middleware enforces the route layer before the handler runs. The gate
// must be installed outside this middleware so the identity is resolved
// first.
func (p *Policy) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if err := p.Evaluate(r.URL.Path, id); err != nil {
				rejectRequest(w, r, id, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectRequest writes the policy engine's reject decision. The response
// never explains why a token failed upstream, only that access is denied.
func rejectRequest(w http.ResponseWriter, r *http.Request, id *Identity, err error) {
	var apiErr *api.APIError
	var status int

	if err == ErrUnauthenticated {
		apiErr = api.NewUnauthenticatedError()
		status = http.StatusUnauthorized
		observability.AuthzDenialsTotal.WithLabelValues("unauthenticated").Inc()
	} else {
		apiErr = api.NewForbiddenError("access denied")
		status = http.StatusForbidden
		observability.AuthzDenialsTotal.WithLabelValues("forbidden").Inc()
	}

	subject := ""
	if id != nil {
		subject = id.Username
	}
	slog.Warn("request denied by route policy",
		"path", r.URL.Path,
		"subject", subject,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// matchPattern matches a path against a pattern containing at most one
// '*' wildcard. Without a wildcard the match is exact.
func matchPattern(pattern, path string) bool {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == path
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	return len(path) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(path, prefix) &&
		strings.HasSuffix(path, suffix)
}
