// Package session provides opaque server-side sessions: the [Session]
// model, the [Store] contract, a Redis backend and the sb_session cookie
// helpers.
//
// # Identifiers
//
// Session ids are 32 random bytes, base64url without padding ([NewID]).
// The id is the only thing the client holds; everything else stays on the
// server.
//
// # Binary encoding
//
// [RedisStore] keeps records in a compact versioned binary format
// ([Encode]/[Decode]). Updates (touch, revoke) run under WATCH so a touch
// can never resurrect a revoked session.
//
// # Architecture boundaries
//
// This package owns persistence and cookies. It does NOT decide whether a
// request is authenticated: validity checks, background touches and user
// resolution belong to the Engine. The PostgreSQL backend lives in
// internal/pgstore and implements the same [Store] interface plus [Lister].
//
// # What this package must NOT do
//
//   - Import the root package or permission (no upward imports).
//   - Delete sessions as part of normal operation; revocation is a flag.
package session
