package transport

import (
	"log/slog"
	"net/http"

	"github.com/trailhub/trailhub/pkg/auth"
	"github.com/trailhub/trailhub/pkg/observability"
	"github.com/trailhub/trailhub/pkg/storage"
)

// API bundles the handlers for the REST and SOAP surfaces with the auth
// core they depend on.
type API struct {
	store       storage.Store
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenService
	policy      *auth.Policy
	logger      *slog.Logger
	metricsPath string
	metrics     http.Handler
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the structured logger used by the request-logging
// middleware.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithMetrics mounts a metrics scrape handler at the given path. The
// handler runs inside the middleware chain like every other route, so
// route policy decides whether a scrape needs credentials.
func WithMetrics(path string, h http.Handler) Option {
	return func(a *API) {
		a.metricsPath = path
		a.metrics = h
	}
}

// New creates the API surface over the given store and auth components.
func New(store storage.Store, hasher *auth.PasswordHasher, tokens *auth.TokenService, policy *auth.Policy, opts ...Option) *API {
	a := &API{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		policy: policy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler: router wrapped in the
// authentication gate, the route-policy engine, and the default
// middleware chain. Order matters: the gate must resolve the identity
// before the policy engine evaluates the route, and both run after
// recovery/request-ID/logging so denials are logged and measured too.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health.
	mux.HandleFunc("GET /healthz", a.handleHealth)

	// Auth.
	mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/auth/register", a.handleRegister)

	// Users.
	mux.HandleFunc("GET /api/users", a.handleListUsers)
	mux.HandleFunc("GET /api/users/profile", a.handleGetProfile)
	mux.HandleFunc("PUT /api/users/profile", a.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/users/profile", a.handleDeleteProfile)
	mux.HandleFunc("GET /api/users/{id}", a.handleGetUser)
	mux.HandleFunc("GET /api/users/username/{username}", a.handleGetUserByUsername)

	// Events.
	mux.HandleFunc("GET /api/events", a.handleListEvents)
	mux.HandleFunc("POST /api/events", a.handleCreateEvent)
	mux.HandleFunc("GET /api/events/owned", a.handleOwnedEvents)
	mux.HandleFunc("GET /api/events/applied", a.handleAppliedEvents)
	mux.HandleFunc("GET /api/events/search/name", a.handleSearchEventsByName)
	mux.HandleFunc("GET /api/events/search/date", a.handleSearchEventsByDate)
	mux.HandleFunc("GET /api/events/search/status", a.handleSearchEventsByStatus)
	mux.HandleFunc("GET /api/events/search/participants", a.handleSearchEventsByParticipants)
	mux.HandleFunc("GET /api/events/search/length", a.handleSearchEventsByLength)
	mux.HandleFunc("GET /api/events/search/elevation", a.handleSearchEventsByElevation)
	mux.HandleFunc("GET /api/events/{id}", a.handleGetEvent)
	mux.HandleFunc("PUT /api/events/{id}", a.handleUpdateEvent)
	mux.HandleFunc("DELETE /api/events/{id}", a.handleDeleteEvent)
	mux.HandleFunc("POST /api/events/{id}/join", a.handleJoinEvent)
	mux.HandleFunc("DELETE /api/events/{id}/leave", a.handleLeaveEvent)

	// SOAP.
	mux.HandleFunc("POST /ws/events", a.handleSOAP)

	// Metrics, when configured.
	if a.metrics != nil {
		mux.Handle("GET "+a.metricsPath, a.metrics)
	}

	creds := storage.NewCredentials(a.store)

	return Chain(
		Recovery(),
		RequestID(),
		Logging(a.logger),
		observability.MetricsMiddleware,
		auth.Gate(a.tokens, creds),
		a.policy.Middleware(),
	)(mux)
}

// handleHealth reports liveness and store reachability.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}
