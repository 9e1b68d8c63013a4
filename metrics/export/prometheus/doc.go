// Package prometheus renders accountauth engine metrics in the Prometheus
// text exposition format.
//
// Counters are named accountauth_*_total and the login latency histogram is
// accountauth_login_latency_seconds. Nothing is registered globally; callers
// mount [PrometheusExporter.Handler] where they want it.
package prometheus
