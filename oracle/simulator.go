// Package oracle provides the probabilistic backends that answer measurement
// settings with single shots.
package oracle

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"
)

const (
	SimulatorDeviceName   = "simulator"
	SimulatorProviderName = "oqtopus-nonlocal"
)

// SimulatorOracle samples the closed form measurement statistics of the two
// preparations a MeasurementSetting can ask for. It holds no quantum state.
type SimulatorOracle struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	latency time.Duration
	closed  atomic.Bool
	shots   atomic.Int64
}

func NewSimulatorOracle() *SimulatorOracle {
	return &SimulatorOracle{}
}

func (s *SimulatorOracle) Setup(conf *core.Conf) error {
	zap.L().Debug("setting up simulator oracle")
	seed := conf.OracleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if conf.OracleLatencyMillis < 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "oracle latency(%d) must not be negative", conf.OracleLatencyMillis)
	}
	s.mu.Lock()
	s.rnd = rand.New(rand.NewSource(seed))
	s.mu.Unlock()
	s.latency = time.Duration(conf.OracleLatencyMillis) * time.Millisecond
	s.closed.Store(false)
	zap.L().Debug(fmt.Sprintf("simulator oracle is ready/seed:%d/latency:%s", seed, s.latency))
	return nil
}

func (s *SimulatorOracle) Measure(ctx context.Context, ms core.MeasurementSetting) (core.AnswerPair, error) {
	if s.closed.Load() {
		return core.AnswerPair{}, errors.Wrap(core.ErrOracleUnavailable, "simulator is closed")
	}
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return core.AnswerPair{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return core.AnswerPair{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rnd == nil {
		return core.AnswerPair{}, errors.Wrap(core.ErrOracleUnavailable, "simulator is not set up")
	}
	var a core.AnswerPair
	if ms.Entangled {
		// Bell pair: uniform marginals, P(a == b) = cos²((θA-θB)/2)
		a.A = core.BitOf(s.rnd.Float64() < 0.5)
		same := s.rnd.Float64() < math.Pow(math.Cos((ms.AliceAngle-ms.BobAngle)/2), 2)
		if same {
			a.B = a.A
		} else {
			a.B = 1 - a.A
		}
	} else {
		// |00>: P(1) = sin²(θ/2) on each qubit
		a.A = core.BitOf(s.rnd.Float64() < math.Pow(math.Sin(ms.AliceAngle/2), 2))
		a.B = core.BitOf(s.rnd.Float64() < math.Pow(math.Sin(ms.BobAngle/2), 2))
	}
	s.shots.Add(1)
	return a, nil
}

// Shots is the number of measurements answered so far.
func (s *SimulatorOracle) Shots() int64 {
	return s.shots.Load()
}

func (s *SimulatorOracle) GetDeviceInfo() *core.DeviceInfo {
	st := core.Available
	if s.closed.Load() {
		st = core.Unavailable
	}
	return &core.DeviceInfo{
		DeviceName:   SimulatorDeviceName,
		ProviderName: SimulatorProviderName,
		Type:         "simulator",
		Status:       st,
	}
}

func (s *SimulatorOracle) Close() error {
	s.closed.Store(true)
	return nil
}
