// Package internal contains helper utilities that are private to adminauth:
// token identifiers and the opaque refresh-token codec.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for login, authorize, refresh and online sessions
//   - rate: Redis-backed login retry limiter
//   - logx: slog setup and HTTP request logging
//   - identity: concrete identity-store collaborators
//   - httpapi: HTTP surface
//   - app: service configuration and lifecycle
//
// # What this package must NOT do
//
//   - Export types that appear in the public adminauth API.
//   - Be imported by any package outside the adminauth module.
package internal
