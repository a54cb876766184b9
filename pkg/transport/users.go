package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/auth"
	"github.com/trailhub/trailhub/pkg/storage"
)

// handleListUsers returns all accounts. The route policy restricts this
// to the ADMIN role before the handler runs.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		writeStorageError(w, err, "users")
		return
	}
	if len(users) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := make([]*api.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, api.NewUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetProfile returns the authenticated caller's own account.
func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	u, err := a.store.GetUser(r.Context(), id.ID)
	if err != nil {
		writeStorageError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, api.NewUserResponse(u))
}

// handleGetUser returns an account by ID.
func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || userID <= 0 {
		WriteAPIError(w, api.NewInvalidRequestError("id", "must be a positive integer"))
		return
	}
	u, err := a.store.GetUser(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, api.NewUserResponse(u))
}

// handleGetUserByUsername returns an account by its unique username.
func (a *API) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeStorageError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, api.NewUserResponse(u))
}

// handleUpdateProfile updates the caller's own account. Only fields
// present in the request change; a new password is re-hashed.
func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req api.UpdateUserRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	u, err := a.store.GetUser(r.Context(), id.ID)
	if err != nil {
		writeStorageError(w, err, "user")
		return
	}

	if req.Username != "" {
		u.Username = req.Username
	}
	if req.Password != "" {
		digest, err := a.hasher.Hash(req.Password)
		if err != nil {
			WriteAPIError(w, api.NewServerError("update failed"))
			return
		}
		u.PasswordHash = digest
	}
	if req.DateOfBirth != "" {
		u.DateOfBirth, _ = time.Parse("2006-01-02", req.DateOfBirth)
	}

	updated, err := a.store.UpdateUser(r.Context(), u)
	if err != nil {
		writeStorageError(w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, api.NewUserResponse(updated))
}

// handleDeleteProfile deactivates the caller's own account. Deactivation
// implicitly invalidates every outstanding token for the account.
func (a *API) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	u, err := a.store.GetUser(r.Context(), id.ID)
	if err != nil {
		writeStorageError(w, err, "user")
		return
	}
	if !u.Active {
		WriteAPIError(w, api.NewConflictError("account is already inactive"))
		return
	}

	if err := a.store.DeactivateUser(r.Context(), id.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteAPIError(w, api.NewNotFoundError("user not found"))
			return
		}
		writeStorageError(w, err, "user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
