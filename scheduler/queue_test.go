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
)

func newTestEIS(t *testing.T, name string) *experimentInScheduler {
	e, err := core.NewExperiment(core.ExperimentParam{Name: name, Strategy: "classical", Trials: 1})
	require.Nil(t, err)
	return &experimentInScheduler{experiment: e, done: make(chan struct{})}
}

func TestNormalQueuePut(t *testing.T) {
	n := &NormalQueue{}
	require.Nil(t, n.Setup(&core.Conf{QueueMaxSize: 2}))

	assert.Nil(t, n.Put(newTestEIS(t, "first")))
	assert.Nil(t, n.Put(newTestEIS(t, "second")))
	err := n.Put(newTestEIS(t, "third"))
	assert.True(t, errors.Is(err, core.ErrQueueFull))
	assert.Equal(t, 2, n.GetCurrentSize())

	eis, err := n.Dequeue(context.Background(), false)
	assert.Nil(t, err)
	assert.Equal(t, "first", eis.experiment.Param.Name)
	eis, err = n.Dequeue(context.Background(), false)
	assert.Nil(t, err)
	assert.Equal(t, "second", eis.experiment.Param.Name)
	_, err = n.Dequeue(context.Background(), false)
	assert.NotNil(t, err)
}

func TestNormalQueueUnbounded(t *testing.T) {
	n := &NormalQueue{}
	require.Nil(t, n.Setup(&core.Conf{QueueMaxSize: 0}))
	for i := 0; i < 10; i++ {
		assert.Nil(t, n.Put(newTestEIS(t, "e")))
	}
	assert.Equal(t, 10, n.GetCurrentSize())

	assert.True(t, errors.Is(n.Setup(&core.Conf{QueueMaxSize: -1}), core.ErrInvalidArgument))
}

func TestNormalQueueWait(t *testing.T) {
	n := &NormalQueue{}
	require.Nil(t, n.Setup(&core.Conf{QueueMaxSize: 10}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := n.Dequeue(ctx, true)
	assert.NotNil(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = n.Put(newTestEIS(t, "late"))
	}()
	eis, err := n.Dequeue(context.Background(), true)
	assert.Nil(t, err)
	assert.Equal(t, "late", eis.experiment.Param.Name)
}
