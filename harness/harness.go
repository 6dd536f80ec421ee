package harness

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Harness plays independent trials of a two player nonlocal game.
// It keeps no state between runs, so one Harness may serve concurrent runs.
type Harness struct {
	workers   int
	timeout   time.Duration
	maxTrials int
	outcomes  bool

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	inst           *instruments
}

type Option func(*Harness)

// WithWorkers plays trials on n goroutines. n <= 1 plays them in order on the
// calling goroutine.
func WithWorkers(n int) Option {
	return func(h *Harness) {
		h.workers = n
	}
}

// WithTimeout bounds the wall time of a run. An expired run returns the trials
// played so far as a partial result.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.timeout = d
	}
}

// WithMaxTrials caps the number of trials actually played. A run asking for
// more returns a partial result.
func WithMaxTrials(n int) Option {
	return func(h *Harness) {
		h.maxTrials = n
	}
}

// WithOutcomes records the win or loss of every trial in Stats.Outcomes.
func WithOutcomes() Option {
	return func(h *Harness) {
		h.outcomes = true
	}
}

// WithMeterProvider records the trial and win counters on mp instead of the
// global otel provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(h *Harness) {
		h.meterProvider = mp
	}
}

// WithTracerProvider starts run spans on tp instead of the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Harness) {
		h.tracerProvider = tp
	}
}

func New(opts ...Option) *Harness {
	h := &Harness{
		workers:        1,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.inst = newInstruments(h.meterProvider, h.tracerProvider)
	return h
}

// RunTrials plays numTrials sequential trials and returns the win fraction.
func RunTrials(ctx context.Context, strategy core.Strategy, rule core.Rule,
	sampler core.QuestionSampler, numTrials int) (float64, error) {
	return New().RunTrials(ctx, strategy, rule, sampler, numTrials)
}

// RunTrials returns the fraction of trials won. With a partial result the
// fraction covers the completed trials and the error wraps core.ErrPartialResult.
func (h *Harness) RunTrials(ctx context.Context, strategy core.Strategy, rule core.Rule,
	sampler core.QuestionSampler, numTrials int) (float64, error) {
	st, err := h.Run(ctx, strategy, rule, sampler, numTrials)
	if st == nil {
		return 0, err
	}
	return st.WinFraction(), err
}

type trial struct {
	index    int
	question core.QuestionPair
}

// recorder is shared by the workers of one run. Every trial index is written by
// exactly one worker.
type recorder struct {
	wins      atomic.Int64
	completed atomic.Int64
	marks     []uint8 // 0: not played, 1: lost, 2: won
}

func newRecorder(planned int, withOutcomes bool) *recorder {
	r := &recorder{}
	if withOutcomes {
		r.marks = make([]uint8, planned)
	}
	return r
}

func (r *recorder) add(index int, won bool) {
	if won {
		r.wins.Add(1)
	}
	r.completed.Add(1)
	if r.marks != nil {
		if won {
			r.marks[index] = 2
		} else {
			r.marks[index] = 1
		}
	}
}

// outcomes returns the longest prefix of played trials.
func (r *recorder) outcomes() []bool {
	if r.marks == nil {
		return nil
	}
	out := make([]bool, 0, len(r.marks))
	for _, m := range r.marks {
		if m == 0 {
			break
		}
		out = append(out, m == 2)
	}
	return out
}

// Run plays the trials and returns their statistics.
//
// The only case returning both stats and an error is a partial result, whose
// error wraps core.ErrPartialResult and whose stats have Partial set.
func (h *Harness) Run(ctx context.Context, strategy core.Strategy, rule core.Rule,
	sampler core.QuestionSampler, numTrials int) (*core.Stats, error) {
	if numTrials <= 0 {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "num_trials(%d) must be greater than 0", numTrials)
	}
	if strategy == nil || rule == nil || sampler == nil {
		return nil, errors.Wrap(core.ErrInvalidArgument, "strategy, rule and sampler are required")
	}

	planned := numTrials
	if h.maxTrials > 0 && numTrials > h.maxTrials {
		planned = h.maxTrials
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	st := &core.Stats{
		ID:        uuid.NewString(),
		Requested: numTrials,
		Started:   strfmt.DateTime(time.Now()),
	}
	if ss, ok := sampler.(core.SeededSampler); ok {
		st.Seed = ss.Seed()
	}
	ctx, span := h.inst.tracer.Start(ctx, RunSpanName, trace.WithAttributes(
		attribute.String("run.id", st.ID),
		attribute.Int("run.requested", numTrials),
		attribute.Int("run.workers", h.workers),
	))
	defer span.End()
	defer h.inst.recordRun(ctx, st)
	defer func() {
		span.SetAttributes(attribute.Bool("run.partial", st.Partial))
	}()
	zap.L().Debug(fmt.Sprintf("starting run(%s)/trials:%d/planned:%d/workers:%d",
		st.ID, numTrials, planned, h.workers))

	rec := newRecorder(planned, h.outcomes)
	var err error
	if h.workers <= 1 {
		err = h.runSequential(ctx, strategy, rule, sampler, planned, rec)
	} else {
		err = h.runParallel(ctx, strategy, rule, sampler, planned, rec)
	}

	st.Completed = int(rec.completed.Load())
	st.Wins = int(rec.wins.Load())
	st.Outcomes = rec.outcomes()
	st.Ended = strfmt.DateTime(time.Now())
	span.SetAttributes(
		attribute.Int("run.completed", st.Completed),
		attribute.Int("run.wins", st.Wins),
	)

	if err != nil {
		if errors.Is(err, core.ErrStrategyContractViolation) || ctx.Err() == nil {
			zap.L().Error(fmt.Sprintf("run(%s) failed after %d trials. Reason:%s", st.ID, st.Completed, err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		st.Partial = true
		zap.L().Info(fmt.Sprintf("run(%s) stopped early after %d/%d trials. Reason:%s",
			st.ID, st.Completed, numTrials, err))
		return st, core.Mark(core.ErrPartialResult, err, "%d of %d trials completed", st.Completed, numTrials)
	}
	if planned < numTrials {
		st.Partial = true
		zap.L().Info(fmt.Sprintf("run(%s) reached the trial cap %d of %d", st.ID, planned, numTrials))
		return st, errors.Wrapf(core.ErrPartialResult, "trial cap %d reached before %d trials", planned, numTrials)
	}
	zap.L().Debug(fmt.Sprintf("finished run(%s)/wins:%d/trials:%d", st.ID, st.Wins, st.Completed))
	return st, nil
}

func (h *Harness) runSequential(ctx context.Context, strategy core.Strategy, rule core.Rule,
	sampler core.QuestionSampler, planned int, rec *recorder) error {
	for i := 0; i < planned; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		q, err := draw(ctx, sampler, i)
		if err != nil {
			return err
		}
		won, err := play(ctx, strategy, rule, trial{index: i, question: q})
		if err != nil {
			return err
		}
		rec.add(i, won)
	}
	return nil
}

// runParallel draws questions in trial order on one goroutine and plays them
// on the workers, so a seeded sampler pairs the same question with every index.
func (h *Harness) runParallel(ctx context.Context, strategy core.Strategy, rule core.Rule,
	sampler core.QuestionSampler, planned int, rec *recorder) error {
	g, gctx := errgroup.WithContext(ctx)
	trials := make(chan trial, h.workers)

	g.Go(func() error {
		defer close(trials)
		for i := 0; i < planned; i++ {
			q, err := draw(gctx, sampler, i)
			if err != nil {
				return err
			}
			select {
			case trials <- trial{index: i, question: q}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < h.workers; w++ {
		g.Go(func() error {
			for t := range trials {
				if err := gctx.Err(); err != nil {
					return err
				}
				won, err := play(gctx, strategy, rule, t)
				if err != nil {
					return err
				}
				rec.add(t.index, won)
			}
			return nil
		})
	}
	return g.Wait()
}

func draw(ctx context.Context, sampler core.QuestionSampler, index int) (core.QuestionPair, error) {
	q, err := sampler.Sample(ctx)
	if err != nil {
		return core.QuestionPair{}, errors.Wrapf(err, "sample question of trial %d", index)
	}
	if !q.X.Valid() || !q.Y.Valid() {
		return core.QuestionPair{}, errors.Wrapf(core.ErrInvalidArgument,
			"sampler returned non binary question %s for trial %d", q, index)
	}
	return q, nil
}

func play(ctx context.Context, strategy core.Strategy, rule core.Rule, t trial) (bool, error) {
	a, err := strategy.Evaluate(ctx, t.question)
	if err != nil {
		return false, errors.Wrapf(err, "trial %d", t.index)
	}
	if !a.Valid() {
		return false, errors.Wrapf(core.ErrStrategyContractViolation,
			"trial %d: strategy answered %s for %s", t.index, a, t.question)
	}
	return rule.Wins(t.question, a), nil
}
