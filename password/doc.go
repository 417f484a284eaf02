// Package password hashes and verifies admin credentials with Argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Identity stores may also carry a per-user salt column next to the hash.
// [Verifier] appends that salt to the plaintext before verification so both
// layouts are accepted. [Verifier.Dummy] burns an equivalent amount of work
// for unknown usernames so lookup misses and wrong passwords take the same
// time.
//
// This package never logs plaintext or hash material.
package password
