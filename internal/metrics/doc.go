// Package metrics provides lock-free counters and a latency histogram for
// the authentication engine.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The session validation histogram uses 8 fixed buckets
// (<=5ms through +Inf). Both are allocation-free on the write path.
//
// Export (Prometheus text, OpenTelemetry) lives in metrics/export and reads
// Snapshot values. This package performs no I/O and exposes no global
// registry.
package metrics
