package core

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/dig"
)

// UnimplementedOracle answers every measurement with (0, 0).
type UnimplementedOracle struct{}

func (u *UnimplementedOracle) Setup(*Conf) error { return nil }

func (u *UnimplementedOracle) Measure(context.Context, MeasurementSetting) (AnswerPair, error) {
	return AnswerPair{}, nil
}

func (u *UnimplementedOracle) GetDeviceInfo() *DeviceInfo {
	return &DeviceInfo{
		DeviceName:   "unimplemented",
		ProviderName: "unimplemented",
		Type:         "unimplemented",
		Status:       Available,
	}
}

func (u *UnimplementedOracle) Close() error { return nil }

type unavailableOracleForTest struct {
	UnimplementedOracle
}

func (unavailableOracleForTest) Measure(context.Context, MeasurementSetting) (AnswerPair, error) {
	return AnswerPair{}, ErrOracleUnavailable
}

func (unavailableOracleForTest) Close() error {
	return errors.New("oracle close failure")
}

type unimplementedScheduler struct {
	queueSize int
}

func (u *unimplementedScheduler) Setup(*Conf) error { return nil }

func (u *unimplementedScheduler) Start(context.Context) error { return nil }

func (u *unimplementedScheduler) Submit(*Experiment) error {
	u.queueSize++
	return nil
}

func (u *unimplementedScheduler) Wait(_ context.Context, id string) (*Experiment, error) {
	return nil, errorsNotFound("experiment", id)
}

func (u *unimplementedScheduler) GetCurrentQueueSize() int { return u.queueSize }

func (u *unimplementedScheduler) TearDown() {}

type closeErrorDBForTest struct {
	MemoryDB
}

func (*closeErrorDBForTest) Close() error {
	return errors.New("db close failure")
}

func scWith(o Oracle, d ResultStore) *SystemComponents {
	c := dig.New()
	mustProvide(c, func() Oracle { return o })
	mustProvide(c, func() ResultStore { return d })
	mustProvide(c, func() Scheduler { return &unimplementedScheduler{} })
	return NewSystemComponents(c)
}

func mustProvide(c *dig.Container, constructor interface{}) {
	if err := c.Provide(constructor); err != nil {
		panic(err)
	}
}

// SCWithUnimplementedContainer wires an always-(0,0) oracle, an in-memory
// store and a scheduler that never runs anything.
func SCWithUnimplementedContainer() *SystemComponents {
	return scWith(&UnimplementedOracle{}, &MemoryDB{})
}

func scWithFailingContainer() *SystemComponents {
	return scWith(&unavailableOracleForTest{}, &closeErrorDBForTest{})
}
