// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and keeps event participants in a
// join table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// HealthCheck verifies the database connection is functional.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases database connections.
func (s *Store) Close() {
	s.pool.Close()
}

const userColumns = "id, username, password_hash, date_of_birth, account_active, roles, created_at, updated_at"

// CreateUser inserts a new user. Returns storage.ErrConflict when the
// username is already taken.
func (s *Store) CreateUser(ctx context.Context, u *api.User) (*api.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, date_of_birth, account_active, roles)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.Username, u.PasswordHash, dateOrNil(u.DateOfBirth), u.Active, rolesOrDefault(u.Roles),
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return created, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int) (*api.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*api.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*api.User, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*api.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser persists changes to an existing user.
func (s *Store) UpdateUser(ctx context.Context, u *api.User) (*api.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET username = $2, password_hash = $3, date_of_birth = $4,
		    account_active = $5, roles = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Username, u.PasswordHash, dateOrNil(u.DateOfBirth), u.Active, rolesOrDefault(u.Roles),
	)

	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return updated, nil
}

// DeactivateUser marks the account inactive. The row is kept so event
// ownership history survives.
func (s *Store) DeactivateUser(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET account_active = FALSE, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const eventColumns = "id, name, length, elevation_gain, description, status, event_date, start_location, finish_location, created_by, created_at, updated_at"

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *api.Event) (*api.Event, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO events (name, length, elevation_gain, description, status,
		                    event_date, start_location, finish_location, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+eventColumns,
		e.Name, e.Length, e.ElevationGain, e.Description, e.Status,
		e.EventDate, e.StartLocation, e.FinishLocation, e.CreatedBy,
	)

	created, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	created.Participants = []int{}
	return created, nil
}

// GetEvent retrieves an event by ID, including its participant set.
func (s *Store) GetEvent(ctx context.Context, id int) (*api.Event, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	if err := s.loadParticipants(ctx, []*api.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents returns all events ordered by ID.
func (s *Store) ListEvents(ctx context.Context) ([]*api.Event, error) {
	return s.queryEvents(ctx, "SELECT "+eventColumns+" FROM events ORDER BY id")
}

// ListEventsByCreator returns events created by the given user.
func (s *Store) ListEventsByCreator(ctx context.Context, userID int) ([]*api.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE created_by = $1 ORDER BY id", userID)
}

// ListEventsByParticipant returns events the given user is registered for.
func (s *Store) ListEventsByParticipant(ctx context.Context, userID int) ([]*api.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE id IN (SELECT event_id FROM participants WHERE user_id = $1)
		ORDER BY id`, userID)
}

// SearchEventsByName returns events whose name contains the query,
// case-insensitively.
func (s *Store) SearchEventsByName(ctx context.Context, name string) ([]*api.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE name ILIKE '%' || $1 || '%' ORDER BY id", name)
}

// SearchEventsByDate returns events on, after, or before the anchor date.
func (s *Store) SearchEventsByDate(ctx context.Context, date time.Time, match storage.DateMatch) ([]*api.Event, error) {
	var op string
	switch match {
	case storage.DateAfter:
		op = ">"
	case storage.DateBefore:
		op = "<"
	default:
		op = "="
	}
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE event_date "+op+" $1::date ORDER BY id", date)
}

// SearchEventsByStatus returns events in the given lifecycle state.
func (s *Store) SearchEventsByStatus(ctx context.Context, status api.EventStatus) ([]*api.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE status = $1 ORDER BY id", status)
}

// SearchEventsByParticipantCount filters on the number of registered
// participants.
func (s *Store) SearchEventsByParticipantCount(ctx context.Context, count int, match storage.RangeMatch) ([]*api.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM events e
		WHERE (SELECT COUNT(*) FROM participants p WHERE p.event_id = e.id) `+rangeOp(match)+` $1
		ORDER BY id`, count)
}

// SearchEventsByLength filters on event length.
func (s *Store) SearchEventsByLength(ctx context.Context, length int, match storage.RangeMatch) ([]*api.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE length "+rangeOp(match)+" $1 ORDER BY id", length)
}

// SearchEventsByElevation filters on elevation gain.
func (s *Store) SearchEventsByElevation(ctx context.Context, gain int, match storage.RangeMatch) ([]*api.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE elevation_gain "+rangeOp(match)+" $1 ORDER BY id", gain)
}

// UpdateEvent persists changes to an existing event. The creator and
// participant set are not touched here.
func (s *Store) UpdateEvent(ctx context.Context, e *api.Event) (*api.Event, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE events
		SET name = $2, length = $3, elevation_gain = $4, description = $5,
		    status = $6, event_date = $7, start_location = $8,
		    finish_location = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+eventColumns,
		e.ID, e.Name, e.Length, e.ElevationGain, e.Description,
		e.Status, e.EventDate, e.StartLocation, e.FinishLocation,
	)

	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("updating event: %w", err)
	}
	if err := s.loadParticipants(ctx, []*api.Event{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEvent removes an event; the participants join rows cascade.
func (s *Store) DeleteEvent(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddParticipant registers a user for an event.
func (s *Store) AddParticipant(ctx context.Context, eventID, userID int) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO participants (event_id, user_id) VALUES ($1, $2)", eventID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("adding participant: %w", err)
	}
	return nil
}

// RemoveParticipant unregisters a user from an event.
func (s *Store) RemoveParticipant(ctx context.Context, eventID, userID int) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM participants WHERE event_id = $1 AND user_id = $2", eventID, userID)
	if err != nil {
		return fmt.Errorf("removing participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// queryEvents runs an event query and loads participant sets for the
// results in a single follow-up query.
func (s *Store) queryEvents(ctx context.Context, sql string, args ...any) ([]*api.Event, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*api.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadParticipants(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// loadParticipants fills the Participants field for each event.
func (s *Store) loadParticipants(ctx context.Context, events []*api.Event) error {
	if len(events) == 0 {
		return nil
	}

	byID := make(map[int]*api.Event, len(events))
	ids := make([]int, 0, len(events))
	for _, e := range events {
		e.Participants = []int{}
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT event_id, user_id FROM participants WHERE event_id = ANY($1) ORDER BY user_id", ids)
	if err != nil {
		return fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, userID int
		if err := rows.Scan(&eventID, &userID); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		if e, ok := byID[eventID]; ok {
			e.Participants = append(e.Participants, userID)
		}
	}
	return rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*api.User, error) {
	var u api.User
	var dob *time.Time
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &dob,
		&u.Active, &u.Roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if dob != nil {
		u.DateOfBirth = *dob
	}
	return &u, nil
}

func scanEvent(row rowScanner) (*api.Event, error) {
	var e api.Event
	if err := row.Scan(&e.ID, &e.Name, &e.Length, &e.ElevationGain, &e.Description,
		&e.Status, &e.EventDate, &e.StartLocation, &e.FinishLocation,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// rangeOp maps a RangeMatch to its SQL comparison operator. The operator
// is chosen from a closed set, never interpolated from user input.
func rangeOp(match storage.RangeMatch) string {
	switch match {
	case storage.RangeMin:
		return ">="
	case storage.RangeMax:
		return "<="
	default:
		return "="
	}
}

func dateOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func rolesOrDefault(roles []string) []string {
	if len(roles) == 0 {
		return []string{"USER"}
	}
	return roles
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
