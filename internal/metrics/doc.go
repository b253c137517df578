// Package metrics provides the observability hooks for planning and running
// builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics can be switched on without touching call sites:
//
//	reg := prom.NewRegistry()
//	resolver := discovery.NewResolver().WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// One-shot CLI runs have no scrape endpoint; WriteTextfile dumps a registry in
// the Prometheus text exposition format for the node_exporter textfile
// collector instead.
package metrics
