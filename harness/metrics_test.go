//go:build unit
// +build unit

package harness

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/game"
	"github.com/oqtopus-team/oqtopus-nonlocal/sampler"
)

// collectSums returns the int64 sums of every counter keyed by metric name and
// the value of the partial attribute.
func collectSums(t *testing.T, r *sdkmetric.ManualReader) map[string]map[bool]int64 {
	rm := metricdata.ResourceMetrics{}
	require.Nil(t, r.Collect(context.Background(), &rm))
	got := map[string]map[bool]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			got[m.Name] = map[bool]int64{}
			for _, dp := range sum.DataPoints {
				partial, _ := dp.Attributes.Value("partial")
				got[m.Name][partial.AsBool()] += dp.Value
			}
		}
	}
	return got
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestRunRecordsTelemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	full, err := New(WithMeterProvider(mp), WithTracerProvider(tp), WithWorkers(3)).Run(context.Background(),
		game.ClassicalStrategy, game.CHSHRule, sampler.NewSeeded(4), 400)
	require.Nil(t, err)
	capped, err := New(WithMeterProvider(mp), WithTracerProvider(tp), WithMaxTrials(100)).Run(context.Background(),
		game.ClassicalStrategy, game.CHSHRule, sampler.NewSeeded(5), 1000)
	require.True(t, errors.Is(err, core.ErrPartialResult))
	require.NotNil(t, capped)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(full.Completed), sums[TrialsMetricName][false])
	assert.Equal(t, int64(full.Wins), sums[WinsMetricName][false])
	assert.Equal(t, int64(capped.Completed), sums[TrialsMetricName][true])
	assert.Equal(t, int64(capped.Wins), sums[WinsMetricName][true])
	assert.Equal(t, int64(1), sums[PartialRunsMetricName][false])

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	tests := []struct {
		name      string
		span      sdktrace.ReadOnlySpan
		stats     *core.Stats
		wantPartial bool
	}{
		{name: "complete run", span: spans[0], stats: full},
		{name: "capped run", span: spans[1], stats: capped, wantPartial: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, RunSpanName, tt.span.Name())
			assert.Equal(t, tt.stats.ID, spanAttr(tt.span, "run.id").AsString())
			assert.Equal(t, int64(tt.stats.Completed), spanAttr(tt.span, "run.completed").AsInt64())
			assert.Equal(t, int64(tt.stats.Wins), spanAttr(tt.span, "run.wins").AsInt64())
			assert.Equal(t, tt.wantPartial, spanAttr(tt.span, "run.partial").AsBool())
		})
	}
}
