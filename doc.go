// Package binarystore is the authentication core of the BinaryStore admin
// portal: scrypt password hashing, opaque server-side sessions carried in
// the sb_session cookie, single-use password reset tokens and a fixed
// window login limiter.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// binarystore is the public surface. It exposes [Engine], [Builder],
// [Config] and value types. Flow orchestration, Redis stores, rate limiting
// and audit dispatch live under internal/. HTTP handlers live in httpapi and
// the request guards in middleware; both only call Engine methods.
//
// # Failure policy
//
// The login limiter fails open: an unreachable limiter backend never
// blocks a login. Session validation fails closed: any store error makes
// the request unauthenticated. Both are logged.
package binarystore
