package core

import (
	"context"
)

// Strategy answers a question pair on behalf of both players.
// Implementations must be safe to call from several goroutines.
type Strategy interface {
	Evaluate(ctx context.Context, q QuestionPair) (AnswerPair, error)
}

type StrategyFunc func(ctx context.Context, q QuestionPair) (AnswerPair, error)

func (f StrategyFunc) Evaluate(ctx context.Context, q QuestionPair) (AnswerPair, error) {
	return f(ctx, q)
}

// Rule is the referee's predicate. It must be pure.
type Rule interface {
	Wins(q QuestionPair, a AnswerPair) bool
}

type RuleFunc func(q QuestionPair, a AnswerPair) bool

func (f RuleFunc) Wins(q QuestionPair, a AnswerPair) bool {
	return f(q, a)
}

// QuestionSampler draws independent, uniformly distributed question pairs.
type QuestionSampler interface {
	Sample(ctx context.Context) (QuestionPair, error)
}

// SeededSampler is a QuestionSampler whose sequence is fixed by Seed. Runs
// record the seed so they can be replayed.
type SeededSampler interface {
	QuestionSampler
	Seed() int64
}

type QuestionSamplerFunc func(ctx context.Context) (QuestionPair, error)

func (f QuestionSamplerFunc) Sample(ctx context.Context) (QuestionPair, error) {
	return f(ctx)
}

// MeasurementSetting describes one shot on a two qubit oracle. Each qubit is
// rotated by RY(angle) before a computational basis measurement; when
// Entangled is set the qubits start in the Bell state (|00>+|11>)/sqrt(2),
// otherwise both start in |0>.
type MeasurementSetting struct {
	ID         string  `json:"id"`
	Entangled  bool    `json:"entangled"`
	AliceAngle float64 `json:"alice_angle"`
	BobAngle   float64 `json:"bob_angle"`
}

type DeviceStatus int

const (
	Available DeviceStatus = iota
	Unavailable
)

func (ds DeviceStatus) String() string {
	switch ds {
	case Available:
		return "Available"
	case Unavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

type DeviceInfo struct {
	DeviceName   string       `json:"device_name"`
	ProviderName string       `json:"provider_name"`
	Type         string       `json:"type"`
	Status       DeviceStatus `json:"status"`
}

//go:generate mockgen -destination=../oracle/mock_oracle/mock_oracle.go -package=mock_oracle github.com/oqtopus-team/oqtopus-nonlocal/core Oracle

// Oracle is the external probabilistic backend. Each Measure call is an
// independent single shot.
type Oracle interface {
	Setup(*Conf) error
	Measure(ctx context.Context, s MeasurementSetting) (AnswerPair, error)
	GetDeviceInfo() *DeviceInfo
	Close() error
}
