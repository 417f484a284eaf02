// Package metrics provides lock-free counters and the authorize latency
// histogram.
//
// Counters live in cache-line-padded uint64 slots incremented with
// sync/atomic. The histogram has 8 fixed buckets (<=5ms ... +Inf). The write
// path never allocates. Exporters in metrics/export read Snapshot values.
package metrics
