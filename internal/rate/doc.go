// Package rate implements the Redis-backed login retry lockout.
//
// Failed attempts are counted in fixed windows: INCR plus EXPIRE on the first
// hit. Keys live under the engine prefix:
//   - <prefix>:lu:<username>   per-username failures
//   - <prefix>:li:<ip>         per-IP failures (optional)
//
// Once a counter reaches the configured maximum, CheckLogin rejects further
// attempts until the window expires or ResetLogin clears it.
package rate
