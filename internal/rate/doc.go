// Package rate implements the fixed-window failure counter used to throttle
// admin login attempts.
//
// # Window semantics
//
// A key is blocked once it has accumulated MaxAttempts failures inside the
// current window. The window starts at the first failure and is not
// extended by later failures. A key that has never failed is never blocked.
//
// # Backends
//
//   - [Memory]: a mutex-guarded map owned by the constructed instance. State
//     is local to one process, so it only limits correctly when a single
//     server instance handles all logins.
//   - [Redis]: INCR + PEXPIRE on first hit under the "rate_limit:" prefix.
//     Shared by every instance that points at the same Redis.
//
// # What this package must NOT do
//
//   - Decide what to do when a backend fails. Callers fail open.
//   - Build limiter keys. Callers pass the full key (for login, "<ip>:<email>").
package rate
