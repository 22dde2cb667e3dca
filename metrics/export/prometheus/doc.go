// Package prometheus renders engine counters and the session validation
// latency histogram in the Prometheus text exposition format.
//
// Counters are named binarystore_*_total. Login outcomes and admin actions
// are also grouped into labeled families (binarystore_login_attempts_total
// by outcome, binarystore_admin_actions_total by action). The histogram is
// binarystore_validate_latency_seconds with its observed sum. Nothing is
// registered globally; callers mount [PrometheusExporter.Handler]
// themselves.
package prometheus
