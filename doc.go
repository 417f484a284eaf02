// Package adminauth is the authentication, token-lifecycle and authorization
// core of an admin backend.
//
// An [Engine] verifies credentials behind a single-use captcha, issues signed
// access tokens paired with opaque rotating refresh tokens, and guards each
// request against a Redis session cache: the token's server-side record, the
// user's live password version, the single-device slot and a cached
// permission set are all checked before a request is let through.
//
// Users, roles and login history live outside this package, behind
// [UserProvider], [RoleResolver] and [LoginLogger].
//
// # Failure policy
//
// Every Redis or collaborator failure on the request path denies the request
// with [ErrAuthUnavailable]. Unknown usernames, wrong passwords and (by
// default) disabled accounts are indistinguishable to the caller.
//
// # Revocation
//
// Logout and Kick delete a pair's server-side records, which the guard sees
// on the next request. BumpPasswordVersion, PasswordChanged and ForceLogout
// revoke every token of a user at once. Cached permission sets expire after
// Config.Permission.CacheTTL or on InvalidatePermissions.
package adminauth
