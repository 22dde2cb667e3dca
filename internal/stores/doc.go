// Package stores provides the Redis-backed password reset token store.
//
// # Design
//
// Each token maps to a versioned, binary-encoded record keyed by the
// SHA-256 digest of the token, with a Redis TTL equal to the token
// lifetime. Consume runs a WATCH/MULTI optimistic transaction with retry on
// contention and deletes the record, so a token is accepted at most once.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for reset
// records. It does NOT look up users, hash passwords, or revoke sessions;
// those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import the root package.
//   - Log or store plaintext tokens.
package stores
