// Package prometheus renders Authority counters and the rotation latency
// histogram in Prometheus text exposition format.
//
// Counter names are prefixed tokenauth_ and end in _total. The exporter reads
// a snapshot per scrape and never registers anything globally; callers mount
// [PrometheusExporter.Handler] where they want it.
package prometheus
