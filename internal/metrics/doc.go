// Package metrics aggregates what happened during a paced run.
//
// [Collector] keeps HDR histograms of request latency, admission wait and
// admission jitter together with success/failure counts and per-step
// admission counts:
//
//	collector := metrics.NewCollector()
//	collector.RecordAdmission(result)     // from runner.Options.OnAdmit
//	collector.RecordRequest(latency, err) // from runner.Options.OnComplete
//	stats := collector.Stats(elapsed)
//
// [Exporter] publishes the same events as Prometheus series on a private
// registry; mount [Exporter.Handler] on /metrics.
//
// Errors are grouped with [ErrorLabel]: HTTP failures by status code, other
// errors by a humanized type name such as "Network error".
package metrics
