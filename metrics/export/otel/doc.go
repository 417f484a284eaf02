// Package otel publishes adminauth engine metrics through an OpenTelemetry
// Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter,
// one Int64ObservableGauge per latency bucket and an up-down counter for the
// online-session registry size. A single callback reads the engine snapshot
// on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
