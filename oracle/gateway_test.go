//go:build unit
// +build unit

package oracle

import (
	"context"
	"math"
	"net"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
)

func startBufServer(t *testing.T, backend core.Oracle) (*Server, *bufconn.Listener) {
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(backend, "bufnet")
	go func() {
		_ = srv.ServeListener(lis)
	}()
	t.Cleanup(srv.Shutdown)
	return srv, lis
}

func newBufGateway(t *testing.T, lis *bufconn.Listener) *GatewayOracle {
	g := NewGatewayOracle(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.Nil(t, g.Setup(&core.Conf{}))
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGatewayRoundTrip(t *testing.T) {
	core.ResetSetting()
	core.RegisterSetting(GatewaySettingKey, NewDefaultGatewaySetting())

	sim := newTestSimulator(t, 5)
	srv, lis := startBufServer(t, sim)
	g := newBufGateway(t, lis)

	di := g.GetDeviceInfo()
	assert.Equal(t, SimulatorDeviceName, di.DeviceName)
	assert.Equal(t, core.Available, di.Status)
	assert.Equal(t, "localhost:50051", g.GetAddress())

	tests := []struct {
		name    string
		setting core.MeasurementSetting
		same    bool
	}{
		{
			name:    "aligned",
			setting: core.MeasurementSetting{ID: "aligned", Entangled: true},
			same:    true,
		},
		{
			name:    "opposite",
			setting: core.MeasurementSetting{ID: "opposite", Entangled: true, AliceAngle: math.Pi},
			same:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				a, err := g.Measure(context.Background(), tt.setting)
				require.Nil(t, err)
				assert.Equal(t, tt.same, a.A == a.B)
			}
		})
	}
	assert.Equal(t, int64(40), srv.Metrics().Served)
	assert.Equal(t, int64(0), srv.Metrics().Failed)
}

func TestGatewayBackendFailure(t *testing.T) {
	core.ResetSetting()

	sim := newTestSimulator(t, 5)
	srv, lis := startBufServer(t, sim)
	g := newBufGateway(t, lis)

	require.Nil(t, sim.Close())
	_, err := g.Measure(context.Background(), core.MeasurementSetting{Entangled: true})
	assert.True(t, errors.Is(err, core.ErrOracleUnavailable))
	assert.Equal(t, int64(1), srv.Metrics().Failed)

	di, err := g.RefreshDeviceInfo(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, core.Unavailable, di.Status)
}

func TestServerCountsRequestsByCode(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})

	sim := newTestSimulator(t, 5)
	srv := NewServer(sim, "unused")
	req, err := settingToStruct(core.MeasurementSetting{ID: "m", Entangled: true}, "")
	require.Nil(t, err)

	_, err = srv.Measure(context.Background(), req)
	assert.Nil(t, err)
	_, err = srv.Measure(context.Background(), &structpb.Struct{})
	assert.NotNil(t, err)
	require.Nil(t, sim.Close())
	_, err = srv.Measure(context.Background(), req)
	assert.NotNil(t, err)

	rm := metricdata.ResourceMetrics{}
	require.Nil(t, reader.Collect(context.Background(), &rm))
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != RequestsMetricName {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				code, _ := dp.Attributes.Value("code")
				got[code.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"OK": 1, "InvalidArgument": 1, "Unavailable": 1}, got)
}

func TestGatewaySetup(t *testing.T) {
	tests := []struct {
		name    string
		setting map[string]interface{}
		wantErr error
		address string
	}{
		{
			name:    "overrides host and port",
			setting: map[string]interface{}{"host": "oracle.local", "port": "6000", "timeout_millis": int64(100)},
			address: "oracle.local:6000",
		},
		{
			name:    "keeps defaults of missing keys",
			setting: map[string]interface{}{"timeout_millis": int64(10)},
			address: "localhost:50051",
		},
		{
			name:    "invalid host",
			setting: map[string]interface{}{"host": "bad host!"},
			wantErr: core.ErrInvalidArgument,
		},
		{
			name:    "invalid port",
			setting: map[string]interface{}{"port": "99999"},
			wantErr: core.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core.ResetSetting()
			core.RegisterSetting(GatewaySettingKey, tt.setting)
			g := NewGatewayOracle()
			defer g.Close()
			err := g.Setup(&core.Conf{})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tt.address, g.GetAddress())
		})
	}
}
