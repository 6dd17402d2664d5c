// Package metrics exports sync activity to Prometheus.
//
// Recorder implements reconcile.Recorder: the Synchronizer reports every record
// operation and every run to it. Handler exposes the registry at /metrics through
// the Fiber adaptor.
package metrics
