//go:build unit
// +build unit

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/game"
	"github.com/oqtopus-team/oqtopus-nonlocal/oracle"
)

func setUpTestScheduler(t *testing.T, conf *core.Conf) (*NormalScheduler, *core.MemoryDB) {
	sim := oracle.NewSimulatorOracle()
	require.Nil(t, sim.Setup(conf))
	db := &core.MemoryDB{}
	require.Nil(t, db.Setup(conf))
	n := NewNormalScheduler(sim, db)
	require.Nil(t, n.Setup(conf))
	t.Cleanup(n.TearDown)
	return n, db
}

func submit(t *testing.T, n *NormalScheduler, p core.ExperimentParam) *core.Experiment {
	e, err := core.NewExperiment(p)
	require.Nil(t, err)
	require.Nil(t, n.Submit(e))
	return e
}

func wait(t *testing.T, n *NormalScheduler, id string) *core.Experiment {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e, err := n.Wait(ctx, id)
	require.Nil(t, err)
	return e
}

func TestNormalSchedulerRunsExperiments(t *testing.T) {
	n, _ := setUpTestScheduler(t, &core.Conf{QueueMaxSize: 10, OracleSeed: 9})
	require.Nil(t, n.Start(context.Background()))

	tests := []struct {
		name       string
		param      core.ExperimentParam
		wantStatus core.Status
		wantRate   float64
		completed  int
	}{
		{
			name:       "classical",
			param:      core.ExperimentParam{Strategy: game.ClassicalStrategyName, Trials: 20000, Seed: 1},
			wantStatus: core.SUCCEEDED,
			wantRate:   game.ClassicalBound,
			completed:  20000,
		},
		{
			name:       "quantum on four workers",
			param:      core.ExperimentParam{Strategy: game.QuantumStrategyName, Trials: 20000, Seed: 2, Workers: 4},
			wantStatus: core.SUCCEEDED,
			wantRate:   game.QuantumBound,
			completed:  20000,
		},
		{
			name:       "quantum with oracle questions",
			param:      core.ExperimentParam{Strategy: game.QuantumStrategyName, Sampler: "oracle", Trials: 20000},
			wantStatus: core.SUCCEEDED,
			wantRate:   game.QuantumBound,
			completed:  20000,
		},
		{
			name:       "capped",
			param:      core.ExperimentParam{Strategy: game.ZeroStrategyName, Trials: 20000, Seed: 3, MaxTrials: 5000},
			wantStatus: core.PARTIAL,
			wantRate:   0.75,
			completed:  5000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.param.Name = tt.name
			e := submit(t, n, tt.param)
			got := wait(t, n, e.ID)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.NotNil(t, got.Stats)
			assert.Equal(t, tt.completed, got.Stats.Completed)
			assert.Equal(t, tt.param.Trials, got.Stats.Requested)
			assert.Equal(t, tt.param.Seed, got.Stats.Seed)
			assert.InDelta(t, tt.wantRate, got.Stats.WinFraction(), 0.02)
		})
	}
}

func TestNormalSchedulerFailure(t *testing.T) {
	n, db := setUpTestScheduler(t, &core.Conf{QueueMaxSize: 10})
	require.Nil(t, n.Start(context.Background()))

	e := submit(t, n, core.ExperimentParam{Name: "unknown", Strategy: "telepathy", Trials: 10})
	got := wait(t, n, e.ID)
	assert.Equal(t, core.FAILED, got.Status)
	assert.Nil(t, got.Stats)
	assert.Contains(t, got.Message, "telepathy")

	stored, err := db.Get(e.ID)
	assert.Nil(t, err)
	assert.Equal(t, core.FAILED, stored.Status)

	again := wait(t, n, e.ID)
	assert.Equal(t, core.FAILED, again.Status)
}

func TestNormalSchedulerQueueFull(t *testing.T) {
	n, db := setUpTestScheduler(t, &core.Conf{QueueMaxSize: 1})

	submit(t, n, core.ExperimentParam{Name: "queued", Strategy: "classical", Trials: 10})
	e, err := core.NewExperiment(core.ExperimentParam{Name: "rejected", Strategy: "classical", Trials: 10})
	require.Nil(t, err)
	err = n.Submit(e)
	assert.True(t, errors.Is(err, core.ErrQueueFull))
	assert.Equal(t, 1, n.GetCurrentQueueSize())

	stored, err := db.Get(e.ID)
	assert.Nil(t, err)
	assert.Equal(t, core.FAILED, stored.Status)
}

func TestNormalSchedulerCancel(t *testing.T) {
	n, _ := setUpTestScheduler(t, &core.Conf{QueueMaxSize: 10})

	e := submit(t, n, core.ExperimentParam{Name: "cancelled", Strategy: "classical", Trials: 10})
	assert.Nil(t, n.Cancel(e.ID))
	assert.True(t, errors.Is(n.Cancel("missing"), core.ErrNotFound))

	require.Nil(t, n.Start(context.Background()))
	got := wait(t, n, e.ID)
	assert.Equal(t, core.FAILED, got.Status)
	assert.Equal(t, "cancelled before start", got.Message)
}

func TestNormalSchedulerRejects(t *testing.T) {
	n, _ := setUpTestScheduler(t, &core.Conf{QueueMaxSize: 10})

	e, err := core.NewExperiment(core.ExperimentParam{Strategy: "classical", Trials: 10})
	require.Nil(t, err)
	e.Status = core.RUNNING
	assert.True(t, errors.Is(n.Submit(e), core.ErrInvalidArgument))

	_, err = n.Wait(context.Background(), "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestNormalSchedulerWaitHonorsContext(t *testing.T) {
	n, _ := setUpTestScheduler(t, &core.Conf{QueueMaxSize: 10})

	e := submit(t, n, core.ExperimentParam{Strategy: "classical", Trials: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := n.Wait(ctx, e.ID)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOptions(t *testing.T) {
	assert.Len(t, Options(core.ExperimentParam{}), 0)
	assert.Len(t, Options(core.ExperimentParam{Workers: 2, Timeout: time.Second, MaxTrials: 3, Outcomes: true}), 4)
}
