package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/accountauth"
	otelexport "github.com/MrEthical07/accountauth/metrics/export/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// otelPipeline pushes engine metrics to an OTel exporter on a fixed interval.
type otelPipeline struct {
	provider *sdkmetric.MeterProvider
	exporter *otelexport.Exporter
}

func startOTel(engine *accountauth.Engine, w io.Writer, interval time.Duration) (*otelPipeline, error) {
	out, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("otel stdout exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(out, sdkmetric.WithInterval(interval))),
	)
	exporter, err := otelexport.NewExporter(provider.Meter("github.com/MrEthical07/accountauth"), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	return &otelPipeline{provider: provider, exporter: exporter}, nil
}

// Shutdown flushes the last collection and stops the reader.
func (p *otelPipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	err := p.provider.Shutdown(ctx)
	if cerr := p.exporter.Close(); err == nil {
		err = cerr
	}
	return err
}
