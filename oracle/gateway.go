package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/common"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/game"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const GatewaySettingKey = "gateway"

type GatewaySetting struct {
	Host          string `toml:"host"`
	Port          string `toml:"port"`
	TimeoutMillis int    `toml:"timeout_millis"`
}

func NewDefaultGatewaySetting() GatewaySetting {
	return GatewaySetting{
		Host:          "localhost",
		Port:          "50051",
		TimeoutMillis: 5000,
	}
}

// GatewayOracle forwards every measurement to a remote oracle service.
type GatewayOracle struct {
	setting     GatewaySetting
	address     string
	dialOptions []grpc.DialOption

	mu         sync.RWMutex
	conn       *grpc.ClientConn
	deviceInfo *core.DeviceInfo
}

// NewGatewayOracle returns an oracle that is usable after Setup. Extra dial
// options are appended to the insecure transport credentials.
func NewGatewayOracle(opts ...grpc.DialOption) *GatewayOracle {
	return &GatewayOracle{dialOptions: opts}
}

func (g *GatewayOracle) Setup(conf *core.Conf) error {
	zap.L().Debug("setting up gateway oracle")
	g.setting = NewDefaultGatewaySetting()
	if err := core.DecodeComponentSetting(GatewaySettingKey, &g.setting); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		zap.L().Info("gateway setting is not found, using defaults")
	}
	address, err := common.ValidAddress(g.setting.Host, g.setting.Port)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup gateway oracle/reason:%s", err))
		return errors.Wrap(core.ErrInvalidArgument, err.Error())
	}
	g.address = address
	if err := g.reset(); err != nil {
		return err
	}

	ctx, cancel := g.callContext(context.Background())
	defer cancel()
	if _, err := g.RefreshDeviceInfo(ctx); err != nil {
		// the gateway may come up later, measurements retry the connection
		zap.L().Info(fmt.Sprintf("gateway %s is not reachable yet/reason:%s", g.address, err))
	}
	return nil
}

func (g *GatewayOracle) Measure(ctx context.Context, ms core.MeasurementSetting) (core.AnswerPair, error) {
	conn := g.currentConn()
	if conn == nil {
		return core.AnswerPair{}, errors.Wrap(core.ErrOracleUnavailable, "gateway is not connected")
	}
	req, err := settingToStruct(ms, game.Program(ms))
	if err != nil {
		return core.AnswerPair{}, errors.Wrap(err, "encode measurement setting")
	}
	cctx, cancel := g.callContext(ctx)
	defer cancel()
	resp := &structpb.Struct{}
	if err := conn.Invoke(cctx, measureMethod, req, resp); err != nil {
		if ctx.Err() != nil {
			return core.AnswerPair{}, ctx.Err()
		}
		zap.L().Error(fmt.Sprintf("failed to measure on %s/reason:%s", g.address, err))
		if rerr := g.reset(); rerr != nil {
			zap.L().Error(fmt.Sprintf("failed to reset connection to %s/reason:%s", g.address, rerr))
		}
		return core.AnswerPair{}, core.Mark(core.ErrOracleUnavailable, err, "measure on %s", g.address)
	}
	counts, err := countsFromStruct(resp)
	if err != nil {
		zap.L().Error(fmt.Sprintf("malformed result from %s/reason:%s", g.address, err))
		return core.AnswerPair{}, core.Mark(core.ErrOracleUnavailable, err, "result of %s", g.address)
	}
	a, err := answerFromCounts(counts)
	if err != nil {
		zap.L().Error(fmt.Sprintf("unexpected result from %s/reason:%s", g.address, err))
		return core.AnswerPair{}, core.Mark(core.ErrOracleUnavailable, err, "result of %s", g.address)
	}
	zap.L().Debug(fmt.Sprintf("measured %s on %s/counts:%s", ms.ID, g.address, counts))
	return a, nil
}

// RefreshDeviceInfo asks the gateway for its device info. A failed call marks
// the device unavailable.
func (g *GatewayOracle) RefreshDeviceInfo(ctx context.Context) (*core.DeviceInfo, error) {
	conn := g.currentConn()
	if conn == nil {
		return nil, errors.Wrap(core.ErrOracleUnavailable, "gateway is not connected")
	}
	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, getDeviceInfoMethod, &structpb.Struct{}, resp); err != nil {
		g.mu.Lock()
		g.deviceInfo = &core.DeviceInfo{Status: core.Unavailable}
		g.mu.Unlock()
		return nil, core.Mark(core.ErrOracleUnavailable, err, "device info of %s", g.address)
	}
	di := deviceInfoFromStruct(resp)
	g.mu.Lock()
	g.deviceInfo = di
	g.mu.Unlock()
	return di, nil
}

func (g *GatewayOracle) GetDeviceInfo() *core.DeviceInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.deviceInfo == nil {
		return &core.DeviceInfo{Status: core.Unavailable}
	}
	di := *g.deviceInfo
	return &di
}

func (g *GatewayOracle) GetAddress() string {
	return g.address
}

func (g *GatewayOracle) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

func (g *GatewayOracle) reset() error {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, g.dialOptions...)
	conn, err := grpc.NewClient("passthrough:///"+g.address, opts...)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to make connection to %s/reason:%s", g.address, err))
		return errors.Wrap(err, "dial gateway")
	}
	g.mu.Lock()
	old := g.conn
	g.conn = conn
	g.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	zap.L().Debug(fmt.Sprintf("gateway oracle is ready to use %s", g.address))
	return nil
}

func (g *GatewayOracle) currentConn() *grpc.ClientConn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conn
}

func (g *GatewayOracle) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.setting.TimeoutMillis <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(g.setting.TimeoutMillis)*time.Millisecond)
}
