// Package storage defines the persistence contracts for users and events,
// shared by the in-memory and PostgreSQL implementations. The auth core
// consumes a narrow credential-lookup view of the user store; it never
// writes through it.
package storage
