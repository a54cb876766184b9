// Package api defines the domain types and wire formats for the trailhub
// event-coordination backend: users, events, request/response DTOs, and
// the structured error envelope shared by the REST and SOAP surfaces.
package api
