// Package sampler draws the referee's question pairs.
package sampler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"
)

const (
	SeededName = "seeded"
	OracleName = "oracle"
)

// Seeded draws uniform question pairs from a seeded pseudo random source.
// Two samplers with the same seed produce the same sequence.
type Seeded struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	seed int64
}

// NewSeeded returns a Seeded sampler. A zero seed is replaced by the current
// time; Seed reports the value actually used.
func NewSeeded(seed int64) *Seeded {
	if seed == 0 {
		seed = time.Now().UnixNano()
		zap.L().Info(fmt.Sprintf("no seed given, drawing questions with seed %d", seed))
	}
	return &Seeded{rnd: rand.New(rand.NewSource(seed)), seed: seed}
}

func (s *Seeded) Seed() int64 {
	return s.seed
}

func (s *Seeded) Sample(ctx context.Context) (core.QuestionPair, error) {
	if err := ctx.Err(); err != nil {
		return core.QuestionPair{}, err
	}
	s.mu.Lock()
	v := s.rnd.Intn(4)
	s.mu.Unlock()
	return core.QuestionPair{X: core.Bit(v >> 1), Y: core.Bit(v & 1)}, nil
}

// coinFlip rotates both qubits of a product state onto the equator, so each
// measured bit is a fair coin.
var coinFlip = core.MeasurementSetting{
	ID:         "qrng",
	Entangled:  false,
	AliceAngle: math.Pi / 2,
	BobAngle:   math.Pi / 2,
}

// Oracle draws question pairs by measuring two independent qubits on an oracle.
// Alice's bit becomes x and Bob's bit becomes y.
type Oracle struct {
	oracle core.Oracle
}

func NewOracle(o core.Oracle) *Oracle {
	return &Oracle{oracle: o}
}

func (s *Oracle) Sample(ctx context.Context) (core.QuestionPair, error) {
	a, err := s.oracle.Measure(ctx, coinFlip)
	if err != nil {
		if errors.Is(err, core.ErrOracleUnavailable) {
			return core.QuestionPair{}, err
		}
		return core.QuestionPair{}, core.Mark(core.ErrOracleUnavailable, err, "draw questions")
	}
	return core.QuestionPair{X: a.A, Y: a.B}, nil
}

// New returns a sampler by name.
func New(name string, seed int64, o core.Oracle) (core.QuestionSampler, error) {
	switch name {
	case SeededName, "":
		return NewSeeded(seed), nil
	case OracleName:
		if o == nil {
			return nil, errors.Wrap(core.ErrInvalidArgument, "oracle sampler needs an oracle")
		}
		return NewOracle(o), nil
	default:
		return nil, errors.Wrapf(core.ErrUnknownComponent, "sampler %q", name)
	}
}

func Names() []string {
	return []string{OracleName, SeededName}
}
