package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-openapi/strfmt"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/game"
	"github.com/oqtopus-team/oqtopus-nonlocal/harness"
	"github.com/oqtopus-team/oqtopus-nonlocal/sampler"
	"go.uber.org/zap"
)

type statusHistory map[string][]core.Status

type experimentInScheduler struct {
	experiment *core.Experiment
	done       chan struct{}
}

// NormalScheduler runs queued experiments one at a time, since they share
// one oracle.
type NormalScheduler struct {
	oracle core.Oracle
	store  core.ResultStore
	queue  *NormalQueue

	mu            sync.Mutex
	waiting       map[string]chan struct{}
	cancelled     map[string]bool
	statusHistory statusHistory

	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewNormalScheduler(o core.Oracle, s core.ResultStore) *NormalScheduler {
	return &NormalScheduler{
		oracle: o,
		store:  s,
	}
}

func (n *NormalScheduler) Setup(conf *core.Conf) error {
	n.queue = &NormalQueue{}
	if err := n.queue.Setup(conf); err != nil {
		return err
	}
	n.waiting = make(map[string]chan struct{})
	n.cancelled = make(map[string]bool)
	n.statusHistory = make(statusHistory)
	return nil
}

func (n *NormalScheduler) Start(ctx context.Context) error {
	if n.queue == nil {
		return errors.New("scheduler is not set up")
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.stopped = make(chan struct{})
	go func() {
		defer close(n.stopped)
		for {
			zap.L().Debug("checking the queue...")
			eis, err := n.queue.Dequeue(ctx, true)
			if err != nil {
				if ctx.Err() != nil {
					zap.L().Debug("scheduler is stopped")
					return
				}
				zap.L().Error(fmt.Sprintf("failed to get experiment from queue. Reason:%s", err))
				continue
			}
			n.process(ctx, eis)
		}
	}()
	return nil
}

// Submit stores e and queues it. A full queue fails the experiment with
// core.ErrQueueFull.
func (n *NormalScheduler) Submit(e *core.Experiment) error {
	if e.Status != core.READY {
		return errors.Wrapf(core.ErrInvalidArgument, "experiment(%s) is %s, not ready", e.ID, e.Status)
	}
	if err := n.store.Insert(e); err != nil {
		zap.L().Error(fmt.Sprintf("failed to insert experiment(%s)/reason:%s", e.ID, err))
		return err
	}
	eis := &experimentInScheduler{
		experiment: e.Clone(),
		done:       make(chan struct{}),
	}
	n.mu.Lock()
	n.waiting[e.ID] = eis.done
	n.recordStatus(e.ID, core.READY)
	n.mu.Unlock()

	if err := n.queue.Put(eis); err != nil {
		core.SetFailureWithError(eis.experiment, err)
		n.finish(eis)
		return err
	}
	zap.L().Info(fmt.Sprintf("submitted experiment(%s) %q", e.ID, e.Param.Name))
	return nil
}

// Cancel fails an experiment that is still waiting in the queue.
func (n *NormalScheduler) Cancel(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.waiting[id]; !ok {
		return errors.Wrapf(core.ErrNotFound, "queued experiment %s", id)
	}
	h := n.statusHistory[id]
	if len(h) == 0 || h[len(h)-1] != core.READY {
		return errors.Wrapf(core.ErrInvalidArgument, "experiment(%s) already started", id)
	}
	n.cancelled[id] = true
	return nil
}

// Wait blocks until the experiment is finished and returns its stored state.
func (n *NormalScheduler) Wait(ctx context.Context, id string) (*core.Experiment, error) {
	n.mu.Lock()
	done, ok := n.waiting[id]
	n.mu.Unlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e, err := n.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !e.Status.IsFinished() {
		return nil, errors.Errorf("experiment(%s) is %s but not queued", id, e.Status)
	}
	return e, nil
}

func (n *NormalScheduler) GetCurrentQueueSize() int {
	return n.queue.GetCurrentSize()
}

// TearDown stops the dispatch loop after the running experiment returns.
// Queued experiments stay ready in the store.
func (n *NormalScheduler) TearDown() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.stopped
	zap.L().Debug(fmt.Sprintf("scheduler stopped with %d queued experiments", n.GetCurrentQueueSize()))
}

func (n *NormalScheduler) process(ctx context.Context, eis *experimentInScheduler) {
	e := eis.experiment
	n.mu.Lock()
	cancelled := n.cancelled[e.ID]
	n.mu.Unlock()
	if cancelled {
		core.SetFailureWithError(e, errors.New("cancelled before start"))
		n.finish(eis)
		return
	}

	zap.L().Debug(fmt.Sprintf("processing experiment:%s", e.ID))
	e.Status = core.RUNNING
	n.mu.Lock()
	n.recordStatus(e.ID, e.Status)
	n.mu.Unlock()
	if err := n.store.Update(e); err != nil {
		zap.L().Error(fmt.Sprintf("failed to update experiment(%s)/reason:%s", e.ID, err))
	}

	st, err := n.run(ctx, e.Param)
	e.Stats = st
	switch {
	case err == nil:
		e.Status = core.SUCCEEDED
		e.Ended = strfmt.DateTime(time.Now())
	case errors.Is(err, core.ErrPartialResult):
		e.Status = core.PARTIAL
		e.Message = err.Error()
		e.Ended = strfmt.DateTime(time.Now())
	default:
		core.SetFailureWithError(e, err)
	}
	n.finish(eis)
}

func (n *NormalScheduler) run(ctx context.Context, p core.ExperimentParam) (*core.Stats, error) {
	rule, err := game.NewRule(p.Game)
	if err != nil {
		return nil, err
	}
	strategy, err := game.NewStrategy(p.Strategy, n.oracle)
	if err != nil {
		return nil, err
	}
	qs, err := sampler.New(p.Sampler, p.Seed, n.oracle)
	if err != nil {
		return nil, err
	}
	h := harness.New(Options(p)...)
	return h.Run(ctx, strategy, rule, qs, p.Trials)
}

// Options translates experiment parameters into harness options.
func Options(p core.ExperimentParam) []harness.Option {
	opts := []harness.Option{}
	if p.Workers > 0 {
		opts = append(opts, harness.WithWorkers(p.Workers))
	}
	if p.Timeout > 0 {
		opts = append(opts, harness.WithTimeout(p.Timeout))
	}
	if p.MaxTrials > 0 {
		opts = append(opts, harness.WithMaxTrials(p.MaxTrials))
	}
	if p.Outcomes {
		opts = append(opts, harness.WithOutcomes())
	}
	return opts
}

// finish stores the final state of an experiment and releases its waiters.
func (n *NormalScheduler) finish(eis *experimentInScheduler) {
	e := eis.experiment
	if err := n.store.Update(e); err != nil {
		zap.L().Error(fmt.Sprintf("failed to update experiment(%s)/reason:%s", e.ID, err))
	}
	n.mu.Lock()
	n.recordStatus(e.ID, e.Status)
	zap.L().Debug(fmt.Sprintf("status history experiment(%s): %v", e.ID, n.statusHistory[e.ID]))
	delete(n.statusHistory, e.ID)
	delete(n.waiting, e.ID)
	delete(n.cancelled, e.ID)
	n.mu.Unlock()
	close(eis.done)
	zap.L().Info(fmt.Sprintf("finished experiment(%s) with status:%s", e.ID, e.Status))
}

// recordStatus must be called with n.mu held.
func (n *NormalScheduler) recordStatus(id string, st core.Status) {
	n.statusHistory[id] = append(n.statusHistory[id], st)
}
