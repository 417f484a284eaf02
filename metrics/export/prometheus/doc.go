// Package prometheus renders adminauth engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an *adminauth.Engine; mount
// [PrometheusExporter.Handler] on the scrape path. Counters are named
// adminauth_*_total, the guard latency histogram is
// adminauth_authorize_latency_seconds, and engines also report the
// adminauth_online_sessions gauge.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry.
//   - Mutate engine state.
package prometheus
