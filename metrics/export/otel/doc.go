// Package otel publishes hmsAuth engine metrics as OpenTelemetry
// observable instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per latency bucket on a meter owned by the
// caller. The engine is only read, never modified.
package otel
