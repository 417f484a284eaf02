// Package middleware adapts adminauth.Engine authorization to net/http.
//
// # Route kinds
//
//   - public: no middleware.
//   - [RequireAuth]: any live access token.
//   - [RequirePermission]: a live access token whose permission set grants
//     the named permission (or the root permission).
//
// Guards read the Authorization bearer token, call Engine.Authorize and put
// the resulting AuthResult on the request context. Rejections are written
// by [WriteError] as a JSON body with the stable error code and the HTTP
// status adminauth assigns to the error.
//
// [ClientInfo] should run before the guards so audit events and the
// online-session registry see the caller's IP and User-Agent.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Make authorization decisions beyond what Engine.Authorize returns.
package middleware
