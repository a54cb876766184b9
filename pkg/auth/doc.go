// Package auth implements the stateless authentication and authorization
// core: bcrypt password hashing, HMAC-signed bearer tokens, the per-request
// authentication gate, and the two-layer authorization policy engine.
//
// The gate never rejects a request by itself. It resolves a bearer token
// into an Identity (or leaves the request anonymous) and the policy engine
// makes the final accept/reject decision, so public routes still succeed
// with no identity. Any path not matched by the route-policy table is
// denied; the system fails closed.
package auth
