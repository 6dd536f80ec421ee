// Package game holds the CHSH nonlocal game: the referee's rule and the
// strategies Alice and Bob can play with.
package game

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
)

// CHSHRule wins iff (a XOR b) == (x AND y).
var CHSHRule core.Rule = core.RuleFunc(func(q core.QuestionPair, a core.AnswerPair) bool {
	return a.A^a.B == q.X&q.Y
})

// ClassicalStrategy is an optimal deterministic strategy: a = x, b = 1 - y.
// It wins three of the four question pairs.
var ClassicalStrategy core.Strategy = core.StrategyFunc(
	func(_ context.Context, q core.QuestionPair) (core.AnswerPair, error) {
		a := q.X
		var b core.Bit
		if q.Y == 0 {
			b = 1
		}
		return core.AnswerPair{A: a, B: b}, nil
	})

// ConstantStrategy ignores the questions. It does not validate its answers, so
// it can stand in for a misbehaving player.
func ConstantStrategy(a, b core.Bit) core.Strategy {
	return core.StrategyFunc(func(context.Context, core.QuestionPair) (core.AnswerPair, error) {
		return core.AnswerPair{A: a, B: b}, nil
	})
}

// Measurement angles of the optimal entangled strategy. Each player applies
// RY(angle) to their half of a Bell pair and measures.
var (
	AliceAngles = [2]float64{0, -math.Pi / 2}
	BobAngles   = [2]float64{-math.Pi / 4, math.Pi / 4}
)

// QuantumBound is the win probability of the entangled strategy, cos²(π/8).
var QuantumBound = math.Pow(math.Cos(math.Pi/8), 2)

// ClassicalBound is the best win probability without shared entanglement.
const ClassicalBound = 0.75

// Setting returns the measurement setting answering q with the entangled strategy.
func Setting(q core.QuestionPair) core.MeasurementSetting {
	return core.MeasurementSetting{
		Entangled:  true,
		AliceAngle: AliceAngles[q.X&1],
		BobAngle:   BobAngles[q.Y&1],
	}
}

// OracleStrategy answers every question pair with one shot on the oracle.
// Failures of the oracle are reported as core.ErrOracleUnavailable.
func OracleStrategy(o core.Oracle) core.Strategy {
	return core.StrategyFunc(func(ctx context.Context, q core.QuestionPair) (core.AnswerPair, error) {
		a, err := o.Measure(ctx, Setting(q))
		if err != nil {
			if errors.Is(err, core.ErrOracleUnavailable) {
				return core.AnswerPair{}, err
			}
			return core.AnswerPair{}, core.Mark(core.ErrOracleUnavailable, err, "measure %s", q)
		}
		return a, nil
	})
}

// ExpectedWinRate enumerates the four equally likely question pairs and returns
// the exact win probability of a deterministic strategy.
func ExpectedWinRate(ctx context.Context, s core.Strategy, r core.Rule) (float64, error) {
	wins := 0
	qs := core.AllQuestionPairs()
	for _, q := range qs {
		a, err := s.Evaluate(ctx, q)
		if err != nil {
			return 0, err
		}
		if !a.Valid() {
			return 0, errors.Wrapf(core.ErrStrategyContractViolation, "strategy answered %s for %s", a, q)
		}
		if r.Wins(q, a) {
			wins++
		}
	}
	return float64(wins) / float64(len(qs)), nil
}
