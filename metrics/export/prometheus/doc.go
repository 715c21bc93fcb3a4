// Package prometheus exposes hmsAuth engine metrics through
// github.com/prometheus/client_golang.
//
// [NewCollector] returns a prometheus.Collector that callers register on
// their own registry. [Handler] wraps a private registry in a promhttp
// handler for servers that only need /metrics. Counter names are prefixed
// hmsauth_ and end in _total; the single histogram is
// hmsauth_authenticate_latency_seconds.
package prometheus
