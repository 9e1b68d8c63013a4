// Package otel publishes accountauth engine metrics through an
// OpenTelemetry meter.
//
// Counters are grouped per flow: accountauth.login carries one data point
// per outcome (success, failure, rate_limited). Login latency is reported
// as cumulative bucket counts with an le attribute. Callers own the
// MeterProvider and its readers.
package otel
