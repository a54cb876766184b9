// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. Data is lost when the process
// restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/storage"
)

// Store is a mutex-guarded in-memory Store.
type Store struct {
	mu         sync.RWMutex
	users      map[int]*api.User
	byUsername map[string]int
	events     map[int]*api.Event
	nextUserID int
	nextEvtID  int
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:      make(map[int]*api.User),
		byUsername: make(map[string]int),
		events:     make(map[int]*api.Event),
		nextUserID: 1,
		nextEvtID:  1,
	}
}

// CreateUser inserts a new user, assigning the next ID.
func (s *Store) CreateUser(_ context.Context, u *api.User) (*api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.Username]; exists {
		return nil, storage.ErrConflict
	}

	now := time.Now()
	cp := *u
	cp.ID = s.nextUserID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.nextUserID++

	s.users[cp.ID] = &cp
	s.byUsername[cp.Username] = cp.ID

	out := cp
	return &out, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id int) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByUsername retrieves a user by its unique username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(_ context.Context) ([]*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateUser persists changes to an existing user.
func (s *Store) UpdateUser(_ context.Context, u *api.User) (*api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[u.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if u.Username != old.Username {
		if _, taken := s.byUsername[u.Username]; taken {
			return nil, storage.ErrConflict
		}
		delete(s.byUsername, old.Username)
		s.byUsername[u.Username] = u.ID
	}

	cp := *u
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = time.Now()
	s.users[cp.ID] = &cp

	out := cp
	return &out, nil
}

// DeactivateUser marks the account inactive, keeping the row.
func (s *Store) DeactivateUser(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Active = false
	u.UpdatedAt = time.Now()
	return nil
}

// CreateEvent inserts a new event, assigning the next ID.
func (s *Store) CreateEvent(_ context.Context, e *api.Event) (*api.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := copyEvent(e)
	cp.ID = s.nextEvtID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.nextEvtID++

	s.events[cp.ID] = cp
	return copyEvent(cp), nil
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(_ context.Context, id int) (*api.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyEvent(e), nil
}

// ListEvents returns all events ordered by ID.
func (s *Store) ListEvents(_ context.Context) ([]*api.Event, error) {
	return s.filterEvents(func(*api.Event) bool { return true }), nil
}

// ListEventsByCreator returns events created by the given user.
func (s *Store) ListEventsByCreator(_ context.Context, userID int) ([]*api.Event, error) {
	return s.filterEvents(func(e *api.Event) bool { return e.CreatedBy == userID }), nil
}

// ListEventsByParticipant returns events the given user is registered for.
func (s *Store) ListEventsByParticipant(_ context.Context, userID int) ([]*api.Event, error) {
	return s.filterEvents(func(e *api.Event) bool { return e.HasParticipant(userID) }), nil
}

// SearchEventsByName returns events whose name contains the query,
// case-insensitively.
func (s *Store) SearchEventsByName(_ context.Context, name string) ([]*api.Event, error) {
	q := strings.ToLower(name)
	return s.filterEvents(func(e *api.Event) bool {
		return strings.Contains(strings.ToLower(e.Name), q)
	}), nil
}

// SearchEventsByDate returns events on, after, or before the anchor date.
func (s *Store) SearchEventsByDate(_ context.Context, date time.Time, match storage.DateMatch) ([]*api.Event, error) {
	day := date.Truncate(24 * time.Hour)
	return s.filterEvents(func(e *api.Event) bool {
		d := e.EventDate.Truncate(24 * time.Hour)
		switch match {
		case storage.DateAfter:
			return d.After(day)
		case storage.DateBefore:
			return d.Before(day)
		default:
			return d.Equal(day)
		}
	}), nil
}

// SearchEventsByStatus returns events in the given lifecycle state.
func (s *Store) SearchEventsByStatus(_ context.Context, status api.EventStatus) ([]*api.Event, error) {
	return s.filterEvents(func(e *api.Event) bool { return e.Status == status }), nil
}

// SearchEventsByParticipantCount filters on the number of registered
// participants.
func (s *Store) SearchEventsByParticipantCount(_ context.Context, count int, match storage.RangeMatch) ([]*api.Event, error) {
	return s.filterEvents(func(e *api.Event) bool {
		return matchRange(len(e.Participants), count, match)
	}), nil
}

// SearchEventsByLength filters on event length.
func (s *Store) SearchEventsByLength(_ context.Context, length int, match storage.RangeMatch) ([]*api.Event, error) {
	return s.filterEvents(func(e *api.Event) bool {
		return matchRange(e.Length, length, match)
	}), nil
}

// SearchEventsByElevation filters on elevation gain.
func (s *Store) SearchEventsByElevation(_ context.Context, gain int, match storage.RangeMatch) ([]*api.Event, error) {
	return s.filterEvents(func(e *api.Event) bool {
		return matchRange(e.ElevationGain, gain, match)
	}), nil
}

// UpdateEvent persists changes to an existing event. The participant list
// and creator are preserved from the stored record.
func (s *Store) UpdateEvent(_ context.Context, e *api.Event) (*api.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.events[e.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := copyEvent(e)
	cp.CreatedBy = old.CreatedBy
	cp.Participants = append([]int(nil), old.Participants...)
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = time.Now()
	s.events[cp.ID] = cp

	return copyEvent(cp), nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// AddParticipant registers a user for an event.
func (s *Store) AddParticipant(_ context.Context, eventID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return storage.ErrNotFound
	}
	if e.HasParticipant(userID) {
		return storage.ErrConflict
	}
	e.Participants = append(e.Participants, userID)
	e.UpdatedAt = time.Now()
	return nil
}

// RemoveParticipant unregisters a user from an event.
func (s *Store) RemoveParticipant(_ context.Context, eventID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return storage.ErrNotFound
	}
	for i, id := range e.Participants {
		if id == userID {
			e.Participants = append(e.Participants[:i], e.Participants[i+1:]...)
			e.UpdatedAt = time.Now()
			return nil
		}
	}
	return storage.ErrNotFound
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

// filterEvents returns copies of all events matching the predicate,
// ordered by ID.
func (s *Store) filterEvents(keep func(*api.Event) bool) []*api.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*api.Event
	for _, e := range s.events {
		if keep(e) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matchRange(field, value int, match storage.RangeMatch) bool {
	switch match {
	case storage.RangeMin:
		return field >= value
	case storage.RangeMax:
		return field <= value
	default:
		return field == value
	}
}

func copyEvent(e *api.Event) *api.Event {
	cp := *e
	cp.Participants = append([]int(nil), e.Participants...)
	return &cp
}
