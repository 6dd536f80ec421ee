package oracle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"
)

type ExponentialBackoff struct {
	Initial time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	return eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
}

// RetryOracle retries measurements that failed with core.ErrOracleUnavailable.
// Other errors and cancellations are returned at once.
type RetryOracle struct {
	core.Oracle
	attempts int
	backoff  *ExponentialBackoff
}

// NewRetryOracle makes at most attempts calls per measurement.
func NewRetryOracle(o core.Oracle, attempts int, initial time.Duration) *RetryOracle {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryOracle{
		Oracle:   o,
		attempts: attempts,
		backoff:  &ExponentialBackoff{Initial: initial},
	}
}

func (r *RetryOracle) Measure(ctx context.Context, ms core.MeasurementSetting) (core.AnswerPair, error) {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var a core.AnswerPair
		a, err = r.Oracle.Measure(ctx, ms)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, core.ErrOracleUnavailable) || ctx.Err() != nil {
			return core.AnswerPair{}, err
		}
		if attempt == r.attempts {
			break
		}
		d := r.backoff.NextDelay(attempt)
		zap.L().Debug(fmt.Sprintf("retrying measurement %s in %s/attempt:%d/reason:%s", ms.ID, d, attempt, err))
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return core.AnswerPair{}, ctx.Err()
		case <-t.C:
		}
	}
	return core.AnswerPair{}, errors.Wrapf(err, "gave up after %d attempts", r.attempts)
}
