// Package internal contains helpers that are private to the BinaryStore auth
// module: opaque session identifiers and password reset tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: login, logout, validation, account and reset orchestration
//   - metrics: lock-free counters and latency histograms
//   - pgstore: PostgreSQL repositories and embedded migrations
//   - rate: fixed-window login failure counters
//   - stores: Redis-backed password reset tokens
//   - log: zerolog wrapper used by every package
//
// # What this package must NOT do
//
//   - Export types that appear in the public API.
package internal
