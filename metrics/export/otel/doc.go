// Package otel exposes Authority metrics through OpenTelemetry observable
// instruments.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge. One callback reads the snapshot per collection cycle.
// Callers own the MeterProvider.
package otel
