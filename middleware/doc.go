// Package middleware adapts the binarystore engine to net/http.
//
// # Guards
//
//   - [Authenticate] resolves the session cookie and stores the caller in
//     the request context. It never rejects.
//   - [RequireUser] rejects requests without a valid session (401).
//   - [RequireAdmin] additionally rejects non-ADMIN callers (403).
//   - [RequirePermission] rejects callers whose role lacks a permission.
//
// [EdgeSessionPresence] only checks that a session cookie is present. It
// is a cheap first filter for admin pages, not an authorization decision;
// handlers still run one of the guards above.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Session
// validation, role lookup and failure policy live in the engine.
package middleware
