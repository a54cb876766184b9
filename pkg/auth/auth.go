package auth

import (
	"context"
	"errors"
)

// Role is a closed set of authorization role tags. Keeping roles as a
// typed enumeration (rather than free-form strings) makes the route-policy
// table checkable at build time.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity represents an authenticated principal for the duration of one
// request. It is constructed fresh per request from a credential lookup
// and is never persisted or shared across requests.
type Identity struct {
	ID       int
	Username string
	Roles    []Role
	Active   bool
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role Role) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Credential is the stored account record returned by the credential store.
type Credential struct {
	ID           int
	Username     string
	PasswordHash string
	Active       bool
	Roles        []Role
}

// CredentialStore looks up stored credentials by username. It is owned by
// the persistence layer; the auth core only reads from it.
type CredentialStore interface {
	// FindByUsername returns the credential record for the given username,
	// or ErrCredentialNotFound if no such account exists.
	FindByUsername(ctx context.Context, username string) (*Credential, error)
}

// Sentinel errors.
var (
	// ErrCredentialNotFound is returned by credential stores for unknown
	// usernames.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidToken covers every token verification failure: malformed
	// input, bad signature, and expiry. Callers deliberately cannot tell
	// these apart.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthenticated is returned when a route requires an identity and
	// none is present.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when an identity is present but lacks the
	// role required by the matched route, or the route is denied outright.
	ErrForbidden = errors.New("access denied")

	// ErrNotOwner is returned by the ownership check when the acting
	// identity is not the resource's recorded owner.
	ErrNotOwner = errors.New("not the resource owner")

	// ErrBadCredentials is returned by the login flow for an unknown
	// username or a wrong password, without distinguishing the two.
	ErrBadCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled is returned by the login flow when the password
	// was correct but the account has been deactivated.
	ErrAccountDisabled = errors.New("account is disabled")
)
