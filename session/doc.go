// Package session provides the Redis-backed session cache of adminauth.
//
// # Key layout
//
// Access records (at), refresh records (rt, a hash so Lua can read it), refresh
// claims (rtc), live password versions (pv), cached permission sets (perm),
// single-device active tokens (active), online sessions (os) and the online
// indexes (osidx zset, ou per-user set) all live under one configurable prefix.
// Every key of a token pair carries the refresh lifetime as its TTL.
//
// # Binary encoding
//
// Access records and online sessions are stored in a compact versioned binary
// format (see encoder.go). Permission sets use the permission package codec.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the record models. It
// does NOT interpret JWT tokens or decide whether a request is allowed; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import adminauth or jwt (no upward imports).
//   - Store plaintext refresh secrets.
package session
