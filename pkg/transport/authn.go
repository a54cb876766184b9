package transport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/auth"
	"github.com/trailhub/trailhub/pkg/observability"
	"github.com/trailhub/trailhub/pkg/storage"
)

// dummyDigest is a bcrypt digest of an unguessable random value. Login
// verifies against it when the username is unknown so that response
// timing does not reveal whether an account exists.
const dummyDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// handleLogin authenticates a username/password pair and issues a bearer
// token. Unknown usernames and wrong passwords are indistinguishable to
// the caller; a disabled account with correct credentials is reported
// distinctly so clients can tell the situations apart.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	id, err := a.authenticate(r, &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountDisabled):
			observability.LoginAttemptsTotal.WithLabelValues("disabled").Inc()
			slog.Warn("login rejected for disabled account", "username", req.Username)
			WriteAPIError(w, api.NewForbiddenError("account is disabled"))
		case errors.Is(err, auth.ErrBadCredentials):
			observability.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
			slog.Warn("login failed", "remote_addr", r.RemoteAddr)
			WriteErrorResponse(w, &api.APIError{
				Type:    api.ErrorTypeUnauthenticated,
				Message: "invalid credentials",
			}, http.StatusUnauthorized)
		default:
			slog.Error("login error", "error", err)
			WriteAPIError(w, api.NewServerError("authentication failed"))
		}
		return
	}

	token, err := a.tokens.Issue(id)
	if err != nil {
		slog.Error("token issuance failed", "error", err)
		WriteAPIError(w, api.NewServerError("authentication failed"))
		return
	}

	observability.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	slog.Info("login succeeded", "username", id.Username)
	writeJSON(w, http.StatusOK, api.LoginResponse{Token: token})
}

// authenticate verifies credentials against the stored hash. The password
// is always checked before the active flag, so a wrong password on a
// disabled account still reports bad credentials.
func (a *API) authenticate(r *http.Request, req *api.LoginRequest) (*auth.Identity, error) {
	u, err := a.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn a comparison anyway to keep timing uniform.
			a.hasher.Verify(req.Password, dummyDigest)
			return nil, auth.ErrBadCredentials
		}
		return nil, err
	}

	if !a.hasher.Verify(req.Password, u.PasswordHash) {
		return nil, auth.ErrBadCredentials
	}
	if !u.Active {
		return nil, auth.ErrAccountDisabled
	}

	roles := make([]auth.Role, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, auth.Role(role))
	}
	return &auth.Identity{
		ID:       u.ID,
		Username: u.Username,
		Roles:    roles,
		Active:   u.Active,
	}, nil
}

// handleRegister creates a new active account with the USER role.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.CreateUserRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	digest, err := a.hasher.Hash(req.Password)
	if err != nil {
		slog.Error("password hashing failed", "error", err)
		WriteAPIError(w, api.NewServerError("registration failed"))
		return
	}

	u := &api.User{
		Username:     req.Username,
		PasswordHash: digest,
		Active:       true,
		Roles:        []string{string(auth.RoleUser)},
	}
	if req.DateOfBirth != "" {
		u.DateOfBirth, _ = time.Parse("2006-01-02", req.DateOfBirth)
	}

	created, err := a.store.CreateUser(r.Context(), u)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			WriteAPIError(w, api.NewConflictError("username already exists"))
			return
		}
		slog.Error("user creation failed", "error", err)
		WriteAPIError(w, api.NewServerError("registration failed"))
		return
	}

	slog.Info("user registered", "username", created.Username, "id", created.ID)
	writeJSON(w, http.StatusCreated, api.NewUserResponse(created))
}
