package game

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
)

const (
	CHSH                  = "chsh"
	ClassicalStrategyName = "classical"
	QuantumStrategyName   = "quantum"
	ZeroStrategyName      = "zero"
)

var rules = map[string]core.Rule{
	CHSH: CHSHRule,
}

// NewRule returns the referee rule of a game.
func NewRule(name string) (core.Rule, error) {
	r, ok := rules[name]
	if !ok {
		return nil, errors.Wrapf(core.ErrUnknownComponent, "game %q", name)
	}
	return r, nil
}

// NewStrategy returns a strategy by name. Only the quantum strategy uses the oracle.
func NewStrategy(name string, o core.Oracle) (core.Strategy, error) {
	switch name {
	case ClassicalStrategyName:
		return ClassicalStrategy, nil
	case ZeroStrategyName:
		return ConstantStrategy(0, 0), nil
	case QuantumStrategyName:
		if o == nil {
			return nil, errors.Wrap(core.ErrInvalidArgument, "quantum strategy needs an oracle")
		}
		return OracleStrategy(o), nil
	default:
		return nil, errors.Wrapf(core.ErrUnknownComponent, "strategy %q", name)
	}
}

func StrategyNames() []string {
	return []string{ClassicalStrategyName, QuantumStrategyName, ZeroStrategyName}
}

func GameNames() []string {
	names := make([]string, 0, len(rules))
	for n := range rules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
