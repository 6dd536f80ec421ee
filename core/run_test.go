//go:build unit
// +build unit

package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	DefaultTaskImpl
	runs    atomic.Int32
	cleaned atomic.Bool
}

func (c *countingTask) Task() { c.runs.Add(1) }

func (c *countingTask) Cleanup() { c.cleaned.Store(true) }

type stubServer struct {
	stop chan struct{}
}

func (s *stubServer) Serve() error {
	<-s.stop
	return nil
}

func (s *stubServer) Shutdown() { close(s.stop) }

func TestRunContext(t *testing.T) {
	rc := NewRunContext(context.Background())
	task := &countingTask{}
	require.Nil(t, rc.AddPeriodicTask(task, 5*time.Millisecond, "counting"))
	rc.AddAPIServer(&stubServer{stop: make(chan struct{})}, "stub")
	rc.Add(func() error {
		time.Sleep(40 * time.Millisecond)
		return nil
	}, func(error) {})

	assert.Nil(t, rc.Run())
	assert.GreaterOrEqual(t, task.runs.Load(), int32(2))
	assert.True(t, task.cleaned.Load())
}

func TestAddPeriodicTaskRejectsPeriod(t *testing.T) {
	rc := NewRunContext(context.Background())
	assert.NotNil(t, rc.AddPeriodicTask(&countingTask{}, 0, "zero"))
}
