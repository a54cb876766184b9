package storage

import (
	"context"
	"time"

	"github.com/trailhub/trailhub/pkg/api"
)

// DateMatch selects how a date search compares against the anchor date.
type DateMatch string

const (
	DateEqual  DateMatch = "equal"
	DateAfter  DateMatch = "after"
	DateBefore DateMatch = "before"
)

// RangeMatch selects how a numeric search compares against the anchor
// value: equal, min (field >= value) or max (field <= value).
type RangeMatch string

const (
	RangeEqual RangeMatch = "equal"
	RangeMin   RangeMatch = "min"
	RangeMax   RangeMatch = "max"
)

// UserStore handles persistence of user accounts.
type UserStore interface {
	// CreateUser inserts a new user and returns it with its assigned ID.
	// Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, u *api.User) (*api.User, error)

	// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id int) (*api.User, error)

	// GetUserByUsername retrieves a user by its unique username.
	GetUserByUsername(ctx context.Context, username string) (*api.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*api.User, error)

	// UpdateUser persists changes to an existing user, keyed by u.ID.
	UpdateUser(ctx context.Context, u *api.User) (*api.User, error)

	// DeactivateUser marks the account inactive. Deactivation is the
	// delete semantics: the row survives so event ownership history stays
	// intact, but the account can no longer authenticate or act.
	DeactivateUser(ctx context.Context, id int) error
}

// EventStore handles persistence and querying of events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *api.Event) (*api.Event, error)
	GetEvent(ctx context.Context, id int) (*api.Event, error)
	ListEvents(ctx context.Context) ([]*api.Event, error)
	ListEventsByCreator(ctx context.Context, userID int) ([]*api.Event, error)
	ListEventsByParticipant(ctx context.Context, userID int) ([]*api.Event, error)
	SearchEventsByName(ctx context.Context, name string) ([]*api.Event, error)
	SearchEventsByDate(ctx context.Context, date time.Time, match DateMatch) ([]*api.Event, error)
	SearchEventsByStatus(ctx context.Context, status api.EventStatus) ([]*api.Event, error)
	SearchEventsByParticipantCount(ctx context.Context, count int, match RangeMatch) ([]*api.Event, error)
	SearchEventsByLength(ctx context.Context, length int, match RangeMatch) ([]*api.Event, error)
	SearchEventsByElevation(ctx context.Context, gain int, match RangeMatch) ([]*api.Event, error)
	UpdateEvent(ctx context.Context, e *api.Event) (*api.Event, error)
	DeleteEvent(ctx context.Context, id int) error

	// AddParticipant registers a user for an event. Returns ErrConflict
	// if already registered.
	AddParticipant(ctx context.Context, eventID, userID int) error

	// RemoveParticipant unregisters a user. Returns ErrNotFound if the
	// user was not registered.
	RemoveParticipant(ctx context.Context, eventID, userID int) error
}

// Store is the full persistence surface the server is wired against.
type Store interface {
	UserStore
	EventStore

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close()
}
