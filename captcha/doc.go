// Package captcha issues and verifies single-use login challenges.
//
// Expected answers live in Redis under the session prefix with a short TTL.
// Verification removes the entry with an atomic read-and-delete, so a
// challenge can be answered at most once whether the answer was right or not.
package captcha
