package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/auth"
	"github.com/trailhub/trailhub/pkg/storage/memory"
)

// newTestServer assembles the full handler over a fresh in-memory store,
// including the gate and the route-policy middleware, so requests travel
// the same path they would in production.
func newTestServer(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()

	store := memory.New()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	policy := auth.NewPolicy(auth.DefaultRules()...)

	return New(store, hasher, tokens, policy).Handler(), store
}

// do issues one request against the handler. A non-empty token is sent as
// a bearer credential; a non-empty body is sent as JSON.
func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v\nbody: %s", err, rec.Body.String())
	}
	return v
}

// register creates an account and returns its ID.
func register(t *testing.T, h http.Handler, username, password string) int {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", username, rec.Code, rec.Body.String())
	}
	return decodeBody[api.UserResponse](t, rec).ID
}

// login authenticates and returns the bearer token.
func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	rec := do(t, h, http.MethodPost, "/api/auth/login", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", username, rec.Code, rec.Body.String())
	}
	token := decodeBody[api.LoginResponse](t, rec).Token
	if token == "" {
		t.Fatal("login returned an empty token")
	}
	return token
}

const eventBody = `{"name":"Ridge Traverse","length":24,"elevation_gain":1200,"event_date":"2026-10-03","start_location":"North Gate","finish_location":"South Gate"}`

func createEvent(t *testing.T, h http.Handler, token string) int {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/events", token, eventBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[api.Event](t, rec).ID
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newTestServer(t)
	if rec := do(t, h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	rec := do(t, h, http.MethodGet, "/api/users/profile", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: status %d, body %s", rec.Code, rec.Body.String())
	}
	profile := decodeBody[api.UserResponse](t, rec)
	if profile.Username != "alice" {
		t.Errorf("profile username = %q, want alice", profile.Username)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")

	rec := do(t, h, http.MethodPost, "/api/auth/register", "",
		`{"username":"alice","password":"different1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status %d, want 409", rec.Code)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/auth/register", "",
		`{"username":"alice","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("weak password: status %d, want 400", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")

	rec := do(t, h, http.MethodPost, "/api/auth/login", "",
		`{"username":"alice","password":"wrongwrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", rec.Code)
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	h, _ := newTestServer(t)

	// Indistinguishable from a wrong password.
	rec := do(t, h, http.MethodPost, "/api/auth/login", "",
		`{"username":"nobody","password":"hunter2hunter2"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown username: status %d, want 401", rec.Code)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	h, store := newTestServer(t)
	id := register(t, h, "alice", "hunter2hunter2")
	if err := store.DeactivateUser(context.Background(), id); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}

	// Correct password on a disabled account is a distinct outcome from
	// bad credentials.
	rec := do(t, h, http.MethodPost, "/api/auth/login", "",
		`{"username":"alice","password":"hunter2hunter2"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("disabled account: status %d, want 403", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", "",
		`{"username":"alice","password":"wrongwrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("disabled account, wrong password: status %d, want 401", rec.Code)
	}
}

func TestDeactivationInvalidatesToken(t *testing.T) {
	h, store := newTestServer(t)
	id := register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	if rec := do(t, h, http.MethodGet, "/api/events", token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("pre-deactivation: status %d, want 204", rec.Code)
	}

	if err := store.DeactivateUser(context.Background(), id); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}

	// The still-unexpired token must no longer grant access.
	if rec := do(t, h, http.MethodGet, "/api/events", token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("post-deactivation: status %d, want 401", rec.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/events"},
		{http.MethodGet, "/api/users/profile"},
		{http.MethodPost, "/ws/events"},
		{http.MethodGet, "/api/users"},
	}
	for _, tt := range tests {
		if rec := do(t, h, tt.method, tt.path, "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s anonymous: status %d, want 401", tt.method, tt.path, rec.Code)
		}
	}
}

func TestGarbageTokenIsAnonymous(t *testing.T) {
	h, _ := newTestServer(t)
	if rec := do(t, h, http.MethodGet, "/api/events", "garbage", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", rec.Code)
	}
}

func TestUserListIsAdminOnly(t *testing.T) {
	h, store := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	if rec := do(t, h, http.MethodGet, "/api/users", token, ""); rec.Code != http.StatusForbidden {
		t.Errorf("user on admin route: status %d, want 403", rec.Code)
	}

	// Promote directly in the store and log in again; roles are read per
	// request, not baked into the token.
	u, err := store.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	u.Roles = append(u.Roles, string(auth.RoleAdmin))
	if _, err := store.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if rec := do(t, h, http.MethodGet, "/api/users", token, ""); rec.Code != http.StatusOK {
		t.Errorf("admin on admin route: status %d, want 200", rec.Code)
	}
}

func TestEventLifecycle(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	eventID := createEvent(t, h, token)

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/events/%d", eventID), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get event: status %d", rec.Code)
	}
	e := decodeBody[api.Event](t, rec)
	if e.Name != "Ridge Traverse" || e.Status != api.EventStatusActive {
		t.Errorf("event = %+v, want Ridge Traverse/ACTIVE", e)
	}

	update := strings.Replace(eventBody, "Ridge Traverse", "Ridge Loop", 1)
	rec = do(t, h, http.MethodPut, fmt.Sprintf("/api/events/%d", eventID), token, update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update event: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[api.Event](t, rec).Name; got != "Ridge Loop" {
		t.Errorf("updated name = %q, want Ridge Loop", got)
	}

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/events/%d", eventID), token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete event: status %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/api/events/%d", eventID), token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted event: status %d, want 404", rec.Code)
	}
}

func TestEventOwnershipIsolation(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	register(t, h, "bob", "hunter2hunter2")
	aliceToken := login(t, h, "alice", "hunter2hunter2")
	bobToken := login(t, h, "bob", "hunter2hunter2")

	eventID := createEvent(t, h, aliceToken)

	// Bob may read but neither update nor delete Alice's event.
	if rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/events/%d", eventID), bobToken, ""); rec.Code != http.StatusOK {
		t.Errorf("bob read: status %d, want 200", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, fmt.Sprintf("/api/events/%d", eventID), bobToken, eventBody); rec.Code != http.StatusForbidden {
		t.Errorf("bob update: status %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, fmt.Sprintf("/api/events/%d", eventID), bobToken, ""); rec.Code != http.StatusForbidden {
		t.Errorf("bob delete: status %d, want 403", rec.Code)
	}

	// The owner still can.
	if rec := do(t, h, http.MethodDelete, fmt.Sprintf("/api/events/%d", eventID), aliceToken, ""); rec.Code != http.StatusNoContent {
		t.Errorf("owner delete: status %d, want 204", rec.Code)
	}
}

func TestJoinAndLeaveEvent(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	bobID := register(t, h, "bob", "hunter2hunter2")
	aliceToken := login(t, h, "alice", "hunter2hunter2")
	bobToken := login(t, h, "bob", "hunter2hunter2")

	eventID := createEvent(t, h, aliceToken)

	rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/events/%d/join", eventID), bobToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("join: status %d, body %s", rec.Code, rec.Body.String())
	}
	if e := decodeBody[api.Event](t, rec); !e.HasParticipant(bobID) {
		t.Errorf("participants = %v, want to include %d", e.Participants, bobID)
	}

	if rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/events/%d/join", eventID), bobToken, ""); rec.Code != http.StatusConflict {
		t.Errorf("double join: status %d, want 409", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, fmt.Sprintf("/api/events/%d/leave", eventID), bobToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leave: status %d", rec.Code)
	}
	if e := decodeBody[api.Event](t, rec); e.HasParticipant(bobID) {
		t.Errorf("participants = %v after leave, want %d gone", e.Participants, bobID)
	}
}

func TestJoinInactiveEvent(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	register(t, h, "bob", "hunter2hunter2")
	aliceToken := login(t, h, "alice", "hunter2hunter2")
	bobToken := login(t, h, "bob", "hunter2hunter2")

	eventID := createEvent(t, h, aliceToken)

	cancelled := strings.Replace(eventBody, `"length"`, `"status":"CANCELLED","length"`, 1)
	if rec := do(t, h, http.MethodPut, fmt.Sprintf("/api/events/%d", eventID), aliceToken, cancelled); rec.Code != http.StatusOK {
		t.Fatalf("cancel event: status %d, body %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/events/%d/join", eventID), bobToken, ""); rec.Code != http.StatusConflict {
		t.Errorf("join cancelled event: status %d, want 409", rec.Code)
	}
}

func TestEventSearch(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")
	createEvent(t, h, token)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"by name match", "/api/events/search/name?name=ridge", http.StatusOK},
		{"by name no match", "/api/events/search/name?name=swamp", http.StatusNoContent},
		{"by name missing param", "/api/events/search/name", http.StatusBadRequest},
		{"by date equal", "/api/events/search/date?date=2026-10-03", http.StatusOK},
		{"by date after", "/api/events/search/date?date=2026-01-01&type=after", http.StatusOK},
		{"by date before", "/api/events/search/date?date=2026-01-01&type=before", http.StatusNoContent},
		{"by date malformed", "/api/events/search/date?date=oct-3", http.StatusBadRequest},
		{"by date bad type", "/api/events/search/date?date=2026-10-03&type=around", http.StatusBadRequest},
		{"by status", "/api/events/search/status?status=ACTIVE", http.StatusOK},
		{"by status unknown", "/api/events/search/status?status=PENDING", http.StatusBadRequest},
		{"by length min", "/api/events/search/length?length=20&type=min", http.StatusOK},
		{"by length max", "/api/events/search/length?length=20&type=max", http.StatusNoContent},
		{"by elevation equal", "/api/events/search/elevation?elevationGain=1200", http.StatusOK},
		{"by participants min", "/api/events/search/participants?minparticipants=0&type=min", http.StatusOK},
		{"by participants not a number", "/api/events/search/participants?minparticipants=many", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.query, token, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestOwnedAndAppliedEvents(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	register(t, h, "bob", "hunter2hunter2")
	aliceToken := login(t, h, "alice", "hunter2hunter2")
	bobToken := login(t, h, "bob", "hunter2hunter2")

	eventID := createEvent(t, h, aliceToken)
	if rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/events/%d/join", eventID), bobToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("join: status %d", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/events/owned", aliceToken, ""); rec.Code != http.StatusOK {
		t.Errorf("alice owned: status %d, want 200", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events/owned", bobToken, ""); rec.Code != http.StatusNoContent {
		t.Errorf("bob owned: status %d, want 204", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events/applied", bobToken, ""); rec.Code != http.StatusOK {
		t.Errorf("bob applied: status %d, want 200", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events/applied", aliceToken, ""); rec.Code != http.StatusNoContent {
		t.Errorf("alice applied: status %d, want 204", rec.Code)
	}
}

func TestProfileUpdateAndDeactivate(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	rec := do(t, h, http.MethodPut, "/api/users/profile", token,
		`{"password":"newpassword1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Old password no longer works, new one does.
	rec = do(t, h, http.MethodPost, "/api/auth/login", "",
		`{"username":"alice","password":"hunter2hunter2"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("old password after change: status %d, want 401", rec.Code)
	}
	login(t, h, "alice", "newpassword1")

	rec = do(t, h, http.MethodDelete, "/api/users/profile", token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status %d", rec.Code)
	}

	// Account is gone from the login path and the token is dead.
	rec = do(t, h, http.MethodPost, "/api/auth/login", "",
		`{"username":"alice","password":"newpassword1"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("login after deactivation: status %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/users/profile", token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("token after deactivation: status %d, want 401", rec.Code)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/auth/login", "", `{"username": "alice",`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status %d, want 400", rec.Code)
	}
	errResp := decodeBody[api.ErrorResponse](t, rec)
	if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error payload = %+v, want invalid_request", errResp.Error)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "test-request-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-1" {
		t.Errorf("X-Request-ID = %q, want test-request-1", got)
	}
}

func TestMetricsServedThroughPolicy(t *testing.T) {
	store := memory.New()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	policy := auth.NewPolicy(auth.DefaultRules()...)
	h := New(store, hasher, tokens, policy,
		WithMetrics("/metrics", promhttp.Handler())).Handler()

	// The scrape path is public, so an anonymous request passes the
	// route policy and reaches the metrics handler.
	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "# HELP") {
		t.Errorf("metrics body missing exposition text: %.80q", body)
	}

	// A protected path on the same handler still requires credentials.
	if rec := do(t, h, http.MethodGet, "/api/events", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/events anonymous: status %d, want 401", rec.Code)
	}
}
