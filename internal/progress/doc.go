// Package progress carries the structured events emitted at every retailer
// adapter boundary and around each aggregation. A non-blocking Hub batches
// events on a background goroutine and fans them out to pluggable sinks such
// as the zap log sink or Prometheus counters.
package progress
