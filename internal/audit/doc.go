// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zerolog, fan-out, no-op).
//   - [Dispatcher]: buffered async relay. Routine events may be dropped when the
//     buffer is full; durable ones (admin actions) wait for room. Each sink call is
//     bounded by a timeout, and events get an ID and timestamp on Emit.
//   - [Event]: structured audit record with timestamp, type, user, actor, IP, resource, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the engine does. Durable storage of admin actions is a Sink implemented in
// internal/pgstore.
package audit
