package core

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/run"
	"go.uber.org/zap"
)

type RunContext struct {
	*run.Group
	context.Context
}

func NewRunContext(ctx context.Context) *RunContext {
	return &RunContext{
		Group:   &run.Group{},
		Context: ctx,
	}
}

type PeriodicTaskImpl interface {
	Setup() error
	Task()
	Cleanup()
}

type DefaultTaskImpl struct{}

func (v *DefaultTaskImpl) Setup() error { return nil }

func (v *DefaultTaskImpl) Task() {}

func (v *DefaultTaskImpl) Cleanup() {}

func (rc *RunContext) AddPeriodicTask(t PeriodicTaskImpl, period time.Duration, taskName string) error {
	if period <= 0 {
		return fmt.Errorf("period of %s must be positive, got %v", taskName, period)
	}
	if err := t.Setup(); err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup/name:%s/reason:%s", taskName, err))
		return err
	}
	ctx, cancel := context.WithCancel(rc.Context)
	rc.Group.Add(
		func() error {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/Start]", taskName))
			t.Task()
			for {
				select {
				case <-ctx.Done():
					zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cleaning up periodic task", taskName))
					t.Cleanup()
					return ctx.Err()
				case <-ticker.C:
					t.Task()
				}
			}
		},
		func(error) {
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cancelling periodic task", taskName))
			cancel()
		},
	)
	return nil
}

type APIServerImpl interface {
	Serve() error
	Shutdown()
}

func (rc *RunContext) AddAPIServer(s APIServerImpl, serverName string) {
	rc.Group.Add(
		func() error {
			zap.L().Info(fmt.Sprintf("[APIServer/%s/Start]", serverName))
			if err := s.Serve(); err != nil {
				zap.L().Error(fmt.Sprintf("[APIServer/%s/Error]failed to serve/reason:%s", serverName, err))
				return err
			}
			return nil
		},
		func(error) {
			zap.L().Info(fmt.Sprintf("[APIServer/%s/TearDown]shutting down api server", serverName))
			s.Shutdown()
			zap.L().Info(fmt.Sprintf("[APIServer/%s/TearDown]shut down api server", serverName))
		},
	)
}
