// Package jwt signs and verifies adminauth access tokens.
//
// An access token carries the user id, the password version it was minted
// under, the role snapshot and a jti that keys the server-side access record.
// ParseAccess only proves the token is authentic and unexpired; revocation is
// decided by the caller against the session store.
package jwt
