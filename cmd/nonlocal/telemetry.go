package main

import (
	"context"
	"fmt"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// telemetry owns the otel providers installed as globals. Metrics are kept in
// a manual reader and written by the metrics log task or at the end of a
// command; traces are exported only when an OTLP endpoint is configured.
type telemetry struct {
	reader *sdkmetric.ManualReader
	mp     *sdkmetric.MeterProvider
	tp     *sdktrace.TracerProvider
}

func setupTelemetry(ctx context.Context, conf *core.Conf) (*telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "nonlocal"),
		attribute.String("service.version", core.Version),
	)
	t := &telemetry{reader: sdkmetric.NewManualReader()}
	t.mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(t.reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(t.mp)

	if conf.OtlpEndpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(conf.OtlpEndpoint))
		if err != nil {
			zap.L().Error(fmt.Sprintf("failed to create trace exporter for %s/reason:%s", conf.OtlpEndpoint, err))
			return nil, multierr.Append(err, t.mp.Shutdown(ctx))
		}
		t.tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
		otel.SetTracerProvider(t.tp)
		zap.L().Info(fmt.Sprintf("exporting traces to %s", conf.OtlpEndpoint))
	}
	return t, nil
}

func (t *telemetry) metrics() log.MetricsFunc {
	return log.OtelMetrics(t.reader)
}

// logMetrics writes the collected counters to the zap logger.
func (t *telemetry) logMetrics() {
	for _, a := range t.metrics()() {
		zap.L().Info(fmt.Sprintf("telemetry/%s", a))
	}
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs error
	if t.tp != nil {
		errs = multierr.Append(errs, t.tp.Shutdown(ctx))
	}
	errs = multierr.Append(errs, t.mp.Shutdown(ctx))
	if errs != nil {
		zap.L().Error(fmt.Sprintf("failed to shut down telemetry/reason:%s", errs))
	}
	return errs
}
