// Package otel exposes engine metrics through OpenTelemetry observable
// instruments.
//
// Each counter becomes an Int64ObservableCounter. Login outcomes and admin
// actions are additionally reported on one counter per family, with the
// outcome or action as an attribute. Each histogram bucket is an
// Int64ObservableGauge and the observed sum a Float64ObservableGauge in
// seconds. One callback reads the engine snapshot per collection. The
// caller owns the MeterProvider.
package otel
