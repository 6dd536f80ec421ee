package harness

import (
	"context"
	"fmt"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/oqtopus-team/oqtopus-nonlocal/harness"

const (
	TrialsMetricName      = "harness.trials"
	WinsMetricName        = "harness.wins"
	PartialRunsMetricName = "harness.partial_runs"
	RunSpanName           = "harness.Run"
)

type instruments struct {
	tracer  trace.Tracer
	trials  metric.Int64Counter
	wins    metric.Int64Counter
	partial metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) *instruments {
	meter := mp.Meter(instrumentationName)
	return &instruments{
		tracer:  tp.Tracer(instrumentationName),
		trials:  newCounter(meter, TrialsMetricName, "trials played"),
		wins:    newCounter(meter, WinsMetricName, "trials won"),
		partial: newCounter(meter, PartialRunsMetricName, "runs stopped by a deadline or a trial cap"),
	}
}

func newCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		zap.L().Warn(fmt.Sprintf("failed to create %s counter/reason:%s", name, err))
		return noop.Int64Counter{}
	}
	return c
}

func (in *instruments) recordRun(ctx context.Context, st *core.Stats) {
	attrs := metric.WithAttributes(attribute.Bool("partial", st.Partial))
	in.trials.Add(ctx, int64(st.Completed), attrs)
	in.wins.Add(ctx, int64(st.Wins), attrs)
	if st.Partial {
		in.partial.Add(ctx, 1)
	}
}
