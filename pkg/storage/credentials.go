package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/trailhub/trailhub/pkg/auth"
)

// Credentials adapts a UserStore to the auth core's credential-lookup
// collaborator. Each lookup is a single atomic read; no transaction spans
// the authorization decision.
type Credentials struct {
	users UserStore
}

// NewCredentials wraps a user store as an auth.CredentialStore.
func NewCredentials(users UserStore) *Credentials {
	return &Credentials{users: users}
}

var _ auth.CredentialStore = (*Credentials)(nil)

// FindByUsername returns the stored credential record for a username.
func (c *Credentials) FindByUsername(ctx context.Context, username string) (*auth.Credential, error) {
	u, err := c.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	roles := make([]auth.Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, auth.Role(r))
	}

	return &auth.Credential{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Roles:        roles,
	}, nil
}
