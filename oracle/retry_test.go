//go:build unit
// +build unit

package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	gomock "github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/oracle/mock_oracle"
)

func TestExponentialBackoff(t *testing.T) {
	eb := &ExponentialBackoff{Initial: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, eb.NextDelay(1))
	assert.Equal(t, 20*time.Millisecond, eb.NextDelay(2))
	assert.Equal(t, 80*time.Millisecond, eb.NextDelay(4))
}

func TestRetryOracleMeasure(t *testing.T) {
	want := core.AnswerPair{A: 1, B: 0}
	errBroken := errors.New("broken")
	tests := []struct {
		name      string
		attempts  int
		results   []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "first call succeeds",
			attempts:  3,
			results:   []error{nil},
			wantCalls: 1,
		},
		{
			name:      "recovers after an unavailable oracle",
			attempts:  3,
			results:   []error{core.ErrOracleUnavailable, nil},
			wantCalls: 2,
		},
		{
			name:      "gives up after all attempts",
			attempts:  3,
			results:   []error{core.ErrOracleUnavailable, core.ErrOracleUnavailable, core.ErrOracleUnavailable},
			wantCalls: 3,
			wantErr:   core.ErrOracleUnavailable,
		},
		{
			name:      "does not retry other errors",
			attempts:  3,
			results:   []error{errBroken},
			wantCalls: 1,
			wantErr:   errBroken,
		},
		{
			name:      "zero attempts means one call",
			attempts:  0,
			results:   []error{core.ErrOracleUnavailable},
			wantCalls: 1,
			wantErr:   core.ErrOracleUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCtrl := gomock.NewController(t)
			defer mockCtrl.Finish()
			mock := mock_oracle.NewMockOracle(mockCtrl)
			calls := []*gomock.Call{}
			for _, r := range tt.results {
				if r == nil {
					calls = append(calls, mock.EXPECT().Measure(gomock.Any(), gomock.Any()).Return(want, nil))
				} else {
					calls = append(calls, mock.EXPECT().Measure(gomock.Any(), gomock.Any()).Return(core.AnswerPair{}, r))
				}
			}
			gomock.InOrder(calls...)

			r := NewRetryOracle(mock, tt.attempts, time.Millisecond)
			got, err := r.Measure(context.Background(), core.MeasurementSetting{ID: tt.name})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestRetryOracleStopsOnCancel(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mock := mock_oracle.NewMockOracle(mockCtrl)
	ctx, cancel := context.WithCancel(context.Background())
	mock.EXPECT().Measure(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, core.MeasurementSetting) (core.AnswerPair, error) {
			cancel()
			return core.AnswerPair{}, core.ErrOracleUnavailable
		}).Times(1)

	r := NewRetryOracle(mock, 5, time.Hour)
	_, err := r.Measure(ctx, core.MeasurementSetting{})
	assert.True(t, errors.Is(err, core.ErrOracleUnavailable))
}

func TestRetryOracleDelegates(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mock := mock_oracle.NewMockOracle(mockCtrl)
	conf := &core.Conf{}
	mock.EXPECT().Setup(conf).Return(nil)
	mock.EXPECT().GetDeviceInfo().Return(&core.DeviceInfo{DeviceName: "mock"})
	mock.EXPECT().Close().Return(nil)

	r := NewRetryOracle(mock, 2, time.Millisecond)
	assert.Nil(t, r.Setup(conf))
	assert.Equal(t, "mock", r.GetDeviceInfo().DeviceName)
	assert.Nil(t, r.Close())
}
