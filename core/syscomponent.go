package core

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type ResultStore interface {
	Setup(*Conf) error
	Insert(*Experiment) error
	Get(id string) (*Experiment, error)
	Update(*Experiment) error
	List() ([]*Experiment, error)
	Close() error
}

type Scheduler interface {
	Setup(*Conf) error
	Start(ctx context.Context) error
	Submit(*Experiment) error
	Wait(ctx context.Context, id string) (*Experiment, error)
	GetCurrentQueueSize() int
	TearDown()
}

type SystemComponents struct {
	*dig.Container
}

func NewSystemComponents(con *dig.Container) *SystemComponents {
	return &SystemComponents{con}
}

func (s *SystemComponents) Setup(conf *Conf) error {
	var err error
	zap.L().Debug("Setting up oracle")
	err = s.Invoke(
		func(o Oracle) error {
			return o.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up result store")
	err = s.Invoke(
		func(d ResultStore) error {
			return d.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up scheduler")
	err = s.Invoke(
		func(sc Scheduler) error {
			return sc.Setup(conf)
		})
	if err != nil {
		return err
	}
	return nil
}

func (s *SystemComponents) StartScheduler(ctx context.Context) error {
	return s.Invoke(
		func(sc Scheduler) error {
			return sc.Start(ctx)
		})
}

// TearDown stops the scheduler and closes the oracle and the store.
func (s *SystemComponents) TearDown() error {
	var errs error
	_ = s.Invoke(func(sc Scheduler) {
		sc.TearDown()
	})
	_ = s.Invoke(func(o Oracle) {
		errs = multierr.Append(errs, o.Close())
	})
	_ = s.Invoke(func(d ResultStore) {
		errs = multierr.Append(errs, d.Close())
	})
	if errs != nil {
		zap.L().Error(fmt.Sprintf("failed to tear down system components/reason:%s", errs))
	}
	return errs
}

func (s *SystemComponents) GetOracle() (o Oracle, err error) {
	err = s.Invoke(func(q Oracle) {
		o = q
	})
	return
}

func (s *SystemComponents) GetResultStore() (d ResultStore, err error) {
	err = s.Invoke(func(rs ResultStore) {
		d = rs
	})
	return
}

func (s *SystemComponents) GetScheduler() (sc Scheduler, err error) {
	err = s.Invoke(func(n Scheduler) {
		sc = n
	})
	return
}

func (s *SystemComponents) GetDeviceInfo() *DeviceInfo {
	var deviceInfo *DeviceInfo
	_ = s.Invoke(
		func(o Oracle) {
			deviceInfo = o.GetDeviceInfo()
		})
	return deviceInfo
}

func (s *SystemComponents) GetCurrentQueueSize() int {
	var size int
	_ = s.Invoke(
		func(sc Scheduler) {
			size = sc.GetCurrentQueueSize()
		})
	return size
}
