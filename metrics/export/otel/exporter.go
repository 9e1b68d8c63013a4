package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	accountauth "github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

const (
	outcomeKey = attribute.Key("outcome")
	boundKey   = attribute.Key("le")
)

type metricsSource interface {
	MetricsSnapshot() accountauth.MetricsSnapshot
}

// series is one engine counter reported as an outcome of its flow counter.
type series struct {
	id         accountauth.MetricID
	instrument metric.Int64ObservableCounter
	outcome    metric.MeasurementOption
}

// Exporter reports engine counters as one OTel counter per flow, split by
// an outcome attribute, and the login latency histogram as cumulative
// bucket counts keyed by an le attribute.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	series       []series
	latency      metric.Int64ObservableCounter
	latencyCount metric.Int64ObservableCounter
	bounds       []metric.MeasurementOption
}

// NewExporter reads metrics from engine.
func NewExporter(meter metric.Meter, engine *accountauth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	flows := make(map[string]metric.Int64ObservableCounter)
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, ok := flows[def.Flow]
		if !ok {
			name := "accountauth." + def.Flow
			var err error
			ins, err = meter.Int64ObservableCounter(name,
				metric.WithDescription("Outcomes of the "+strings.ReplaceAll(def.Flow, "_", " ")+" flow."),
				metric.WithUnit("{event}"))
			if err != nil {
				return nil, fmt.Errorf("create counter %s: %w", name, err)
			}
			flows[def.Flow] = ins
			observables = append(observables, ins)
		}
		e.series = append(e.series, series{
			id:         def.ID,
			instrument: ins,
			outcome:    metric.WithAttributeSet(attribute.NewSet(outcomeKey.String(def.Outcome))),
		})
	}

	var err error
	e.latency, err = meter.Int64ObservableCounter("accountauth.login.latency.bucket",
		metric.WithDescription("Logins that finished within each latency bound."),
		metric.WithUnit("{login}"))
	if err != nil {
		return nil, fmt.Errorf("create login latency buckets: %w", err)
	}
	e.latencyCount, err = meter.Int64ObservableCounter("accountauth.login.latency.count",
		metric.WithDescription("Logins with a recorded latency."),
		metric.WithUnit("{login}"))
	if err != nil {
		return nil, fmt.Errorf("create login latency count: %w", err)
	}
	observables = append(observables, e.latency, e.latencyCount)
	for _, b := range internaldefs.HistogramBounds {
		e.bounds = append(e.bounds, metric.WithAttributeSet(attribute.NewSet(boundKey.String(b))))
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, s := range e.series {
		o.ObserveInt64(s.instrument, int64(snapshot.Counters[s.id]), s.outcome)
	}

	raw, ok := snapshot.Histograms[accountauth.MetricLoginLatency]
	if !ok {
		return nil
	}
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	for i, v := range cumulative {
		o.ObserveInt64(e.latency, int64(v), e.bounds[i])
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
