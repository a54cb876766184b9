package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/auth"
	"github.com/trailhub/trailhub/pkg/observability"
	"github.com/trailhub/trailhub/pkg/storage"
)

// handleListEvents returns all events.
func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.store.ListEvents(r.Context())
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleGetEvent returns a single event by ID.
func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}
	e, err := a.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleOwnedEvents returns events created by the caller.
func (a *API) handleOwnedEvents(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	events, err := a.store.ListEventsByCreator(r.Context(), id.ID)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleAppliedEvents returns events the caller has joined.
func (a *API) handleAppliedEvents(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	events, err := a.store.ListEventsByParticipant(r.Context(), id.ID)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleSearchEventsByName searches events by name substring.
func (a *API) handleSearchEventsByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		WriteAPIError(w, api.NewInvalidRequestError("name", "name is required"))
		return
	}
	events, err := a.store.SearchEventsByName(r.Context(), name)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleSearchEventsByDate returns events on, after, or before a date.
func (a *API) handleSearchEventsByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		WriteAPIError(w, api.NewInvalidRequestError("date", "must be formatted YYYY-MM-DD"))
		return
	}

	var match storage.DateMatch
	switch r.URL.Query().Get("type") {
	case "", "equal":
		match = storage.DateEqual
	case "after":
		match = storage.DateAfter
	case "before":
		match = storage.DateBefore
	default:
		WriteAPIError(w, api.NewInvalidRequestError("type", "must be equal, after, or before"))
		return
	}

	events, err := a.store.SearchEventsByDate(r.Context(), date, match)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleSearchEventsByStatus filters events by lifecycle state.
func (a *API) handleSearchEventsByStatus(w http.ResponseWriter, r *http.Request) {
	status := api.EventStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		WriteAPIError(w, api.NewInvalidRequestError("status", "unknown event status"))
		return
	}
	events, err := a.store.SearchEventsByStatus(r.Context(), status)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleSearchEventsByParticipants filters events by participant count.
func (a *API) handleSearchEventsByParticipants(w http.ResponseWriter, r *http.Request) {
	count, match, apiErr := parseRangeQuery(r, "minparticipants")
	if apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}
	events, err := a.store.SearchEventsByParticipantCount(r.Context(), count, match)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleSearchEventsByLength filters events by length.
func (a *API) handleSearchEventsByLength(w http.ResponseWriter, r *http.Request) {
	length, match, apiErr := parseRangeQuery(r, "length")
	if apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}
	events, err := a.store.SearchEventsByLength(r.Context(), length, match)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleSearchEventsByElevation filters events by elevation gain.
func (a *API) handleSearchEventsByElevation(w http.ResponseWriter, r *http.Request) {
	gain, match, apiErr := parseRangeQuery(r, "elevationGain")
	if apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}
	events, err := a.store.SearchEventsByElevation(r.Context(), gain, match)
	if err != nil {
		writeStorageError(w, err, "events")
		return
	}
	writeEventList(w, events)
}

// handleCreateEvent creates a new event owned by the caller.
func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	req, ok := decodeEventRequest(w, r)
	if !ok {
		return
	}

	e := eventFromRequest(req)
	e.CreatedBy = id.ID

	created, err := a.store.CreateEvent(r.Context(), e)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateEvent replaces an event's fields. Only the recorded owner
// may update; the route policy has already established an identity, so a
// mismatch is a forbidden outcome, not an unauthenticated one.
func (a *API) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	req, ok := decodeEventRequest(w, r)
	if !ok {
		return
	}

	existing, err := a.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}

	if err := a.policy.AuthorizeOwner(id, existing.CreatedBy); err != nil {
		writeOwnershipDenial(w, err)
		return
	}

	e := eventFromRequest(req)
	e.ID = eventID

	updated, err := a.store.UpdateEvent(r.Context(), e)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteEvent removes an event. Owner only.
func (a *API) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	existing, err := a.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}

	if err := a.policy.AuthorizeOwner(id, existing.CreatedBy); err != nil {
		writeOwnershipDenial(w, err)
		return
	}

	if err := a.store.DeleteEvent(r.Context(), eventID); err != nil {
		writeStorageError(w, err, "event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleJoinEvent registers the caller as a participant. Only active
// events accept new participants.
func (a *API) handleJoinEvent(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	e, err := a.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}
	if e.Status != api.EventStatusActive {
		WriteAPIError(w, api.NewConflictError("event is not active"))
		return
	}

	if err := a.store.AddParticipant(r.Context(), eventID, id.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			WriteAPIError(w, api.NewConflictError("already joined"))
			return
		}
		writeStorageError(w, err, "event")
		return
	}

	updated, err := a.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleLeaveEvent unregisters the caller.
func (a *API) handleLeaveEvent(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	if err := a.store.RemoveParticipant(r.Context(), eventID, id.ID); err != nil {
		writeStorageError(w, err, "event")
		return
	}

	updated, err := a.store.GetEvent(r.Context(), eventID)
	if err != nil {
		writeStorageError(w, err, "event")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// writeOwnershipDenial maps ownership-check failures onto the error
// taxonomy: not-owner is forbidden, a missing identity (possible only if
// the route policy were misconfigured) is unauthenticated.
func writeOwnershipDenial(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrNotOwner) {
		observability.AuthzDenialsTotal.WithLabelValues("not_owner").Inc()
		WriteAPIError(w, api.NewForbiddenError("only the creator may modify this event"))
		return
	}
	WriteAPIError(w, api.NewUnauthenticatedError())
}

// writeEventList writes a list result, using 204 for empty results.
func writeEventList(w http.ResponseWriter, events []*api.Event) {
	if len(events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// parseEventID extracts and validates the {id} path segment.
func parseEventID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		WriteAPIError(w, api.NewInvalidRequestError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// decodeEventRequest parses and validates an event payload.
func decodeEventRequest(w http.ResponseWriter, r *http.Request) (*api.EventRequest, bool) {
	var req api.EventRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		WriteAPIError(w, apiErr)
		return nil, false
	}
	if apiErr := req.Validate(); apiErr != nil {
		WriteAPIError(w, apiErr)
		return nil, false
	}
	return &req, true
}

// eventFromRequest builds an Event from a validated request. The status
// defaults to ACTIVE when omitted.
func eventFromRequest(req *api.EventRequest) *api.Event {
	status := req.Status
	if status == "" {
		status = api.EventStatusActive
	}
	date, _ := time.Parse("2006-01-02", req.EventDate)
	return &api.Event{
		Name:           req.Name,
		Length:         req.Length,
		ElevationGain:  req.ElevationGain,
		Description:    req.Description,
		Status:         status,
		EventDate:      date,
		StartLocation:  req.StartLocation,
		FinishLocation: req.FinishLocation,
	}
}

// parseRangeQuery extracts a numeric query parameter and its comparison
// type (equal, min, max).
func parseRangeQuery(r *http.Request, param string) (int, storage.RangeMatch, *api.APIError) {
	value, err := strconv.Atoi(r.URL.Query().Get(param))
	if err != nil || value < 0 {
		return 0, "", api.NewInvalidRequestError(param, "must be a non-negative integer")
	}

	switch r.URL.Query().Get("type") {
	case "", "equal":
		return value, storage.RangeEqual, nil
	case "min":
		return value, storage.RangeMin, nil
	case "max":
		return value, storage.RangeMax, nil
	default:
		return 0, "", api.NewInvalidRequestError("type", "must be equal, min, or max")
	}
}
