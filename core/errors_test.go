//go:build unit
// +build unit

package core

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestMark(t *testing.T) {
	tests := []struct {
		name    string
		kind    error
		cause   error
		notKind error
	}{
		{
			name:    "partial result over a deadline",
			kind:    ErrPartialResult,
			cause:   context.DeadlineExceeded,
			notKind: ErrOracleUnavailable,
		},
		{
			name:    "oracle unavailable over a transport error",
			kind:    ErrOracleUnavailable,
			cause:   errors.New("connection refused"),
			notKind: ErrPartialResult,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Mark(tt.kind, tt.cause, "trial %d", 3)
			assert.True(t, errors.Is(err, tt.kind))
			assert.True(t, errors.Is(err, tt.cause))
			assert.False(t, errors.Is(err, tt.notKind))
			assert.Contains(t, err.Error(), "trial 3")
			assert.Contains(t, err.Error(), tt.cause.Error())
		})
	}
}

func TestMarkWithoutCause(t *testing.T) {
	err := Mark(ErrQueueFull, nil, "queue %s", "normal")
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Contains(t, err.Error(), "queue normal")
	assert.NotContains(t, err.Error(), ";")
}
