package core

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"go.uber.org/multierr"
)

var (
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrStrategyContractViolation = errors.New("strategy contract violation")
	ErrOracleUnavailable         = errors.New("oracle unavailable")
	ErrPartialResult             = errors.New("partial result")
	ErrQueueFull                 = errors.New("queue is full")
	ErrNotFound                  = errors.New("not found")
	ErrUnknownComponent          = errors.New("unknown component")
	ErrorExperimentIDConflict    = errors.New("experiment id is already used")
)

func errorsNotFound(kind, name string) error {
	return errors.Wrapf(ErrNotFound, "%s %s", kind, name)
}

// Mark labels cause with one of the sentinel errors above. errors.Is matches
// both kind and cause on the result.
func Mark(kind, cause error, format string, args ...interface{}) error {
	return multierr.Append(errors.Wrapf(kind, format, args...), cause)
}

func encodeTOML(v interface{}) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return "", errors.Wrap(err, "encode toml")
	}
	return buf.String(), nil
}
