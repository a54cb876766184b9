package api

import (
	"strings"
	"time"
)

const (
	maxUsernameLen    = 64
	maxDescriptionLen = 1500
	minPasswordLen    = 8
)

// Validate checks a login request for structural problems.
func (r *LoginRequest) Validate() *APIError {
	if strings.TrimSpace(r.Username) == "" {
		return NewInvalidRequestError("username", "username is required")
	}
	if r.Password == "" {
		return NewInvalidRequestError("password", "password is required")
	}
	return nil
}

// Validate checks a registration request.
func (r *CreateUserRequest) Validate() *APIError {
	if strings.TrimSpace(r.Username) == "" {
		return NewInvalidRequestError("username", "username is required")
	}
	if len(r.Username) > maxUsernameLen {
		return NewInvalidRequestError("username", "username too long")
	}
	if len(r.Password) < minPasswordLen {
		return NewInvalidRequestError("password", "password must be at least 8 characters")
	}
	if r.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", r.DateOfBirth); err != nil {
			return NewInvalidRequestError("date_of_birth", "must be formatted YYYY-MM-DD")
		}
	}
	return nil
}

// Validate checks a profile-update request. All fields are optional but
// must be well-formed when present.
func (r *UpdateUserRequest) Validate() *APIError {
	if r.Username != "" && len(r.Username) > maxUsernameLen {
		return NewInvalidRequestError("username", "username too long")
	}
	if r.Password != "" && len(r.Password) < minPasswordLen {
		return NewInvalidRequestError("password", "password must be at least 8 characters")
	}
	if r.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", r.DateOfBirth); err != nil {
			return NewInvalidRequestError("date_of_birth", "must be formatted YYYY-MM-DD")
		}
	}
	return nil
}

// Validate checks an event create/update request.
func (r *EventRequest) Validate() *APIError {
	if strings.TrimSpace(r.Name) == "" {
		return NewInvalidRequestError("name", "name is required")
	}
	if r.Length < 0 {
		return NewInvalidRequestError("length", "length must not be negative")
	}
	if r.ElevationGain < 0 {
		return NewInvalidRequestError("elevation_gain", "elevation gain must not be negative")
	}
	if len(r.Description) > maxDescriptionLen {
		return NewInvalidRequestError("description", "description exceeds 1500 characters")
	}
	if r.Status != "" && !r.Status.Valid() {
		return NewInvalidRequestError("status", "unknown event status")
	}
	if r.EventDate == "" {
		return NewInvalidRequestError("event_date", "event date is required")
	}
	if _, err := time.Parse("2006-01-02", r.EventDate); err != nil {
		return NewInvalidRequestError("event_date", "must be formatted YYYY-MM-DD")
	}
	return nil
}
