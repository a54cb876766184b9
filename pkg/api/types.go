package api

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "ACTIVE"
	EventStatusCancelled EventStatus = "CANCELLED"
	EventStatusFinished  EventStatus = "FINISHED"
)

// Valid reports whether s is one of the known event states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusCancelled, EventStatusFinished:
		return true
	}
	return false
}

// User is the persisted account record. PasswordHash and Active are
// internal fields and are never serialized to clients; handlers convert
// to UserResponse before writing.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	DateOfBirth  time.Time
	Active       bool
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event is a coordinated outdoor event owned by the user who created it.
type Event struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	Length         int         `json:"length"`
	ElevationGain  int         `json:"elevation_gain"`
	Description    string      `json:"description"`
	Status         EventStatus `json:"status"`
	EventDate      time.Time   `json:"event_date"`
	StartLocation  string      `json:"start_location"`
	FinishLocation string      `json:"finish_location"`
	CreatedBy      int         `json:"created_by"`
	Participants   []int       `json:"participants"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// HasParticipant reports whether the user is registered for the event.
func (e *Event) HasParticipant(userID int) bool {
	for _, id := range e.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// UserResponse is the client-facing view of a user account.
type UserResponse struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserResponse trims a User down to its public fields.
func NewUserResponse(u *User) *UserResponse {
	resp := &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
	if !u.DateOfBirth.IsZero() {
		resp.DateOfBirth = u.DateOfBirth.Format("2006-01-02")
	}
	return resp
}

// LoginRequest is the credentials payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// CreateUserRequest is the registration payload.
type CreateUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
}

// UpdateUserRequest is the profile-update payload. Zero-value fields are
// left unchanged.
type UpdateUserRequest struct {
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// EventRequest is the payload for creating or updating an event.
type EventRequest struct {
	Name           string      `json:"name"`
	Length         int         `json:"length"`
	ElevationGain  int         `json:"elevation_gain"`
	Description    string      `json:"description"`
	Status         EventStatus `json:"status"`
	EventDate      string      `json:"event_date"` // YYYY-MM-DD
	StartLocation  string      `json:"start_location"`
	FinishLocation string      `json:"finish_location"`
}
