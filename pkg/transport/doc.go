// Package transport exposes the REST and SOAP surfaces over HTTP. It owns
// route registration, the default middleware chain (recovery, request ID,
// logging), and the mapping from domain errors to the JSON error envelope.
//
// The authentication gate and the route-policy engine are installed
// around the router here, so every request passes through the single
// decision point before any handler runs.
package transport
