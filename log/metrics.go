package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/common"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

const MetricsLogTaskName = "metrics_log"

const (
	queueLengthKeyInMetrics  = "queue_length"
	deviceStatusKeyInMetrics = "device_status"
)

// MetricsSource is satisfied by *core.SystemComponents.
type MetricsSource interface {
	GetCurrentQueueSize() int
	GetDeviceInfo() *core.DeviceInfo
}

// MetricsFunc contributes extra attributes to every metrics line.
type MetricsFunc func() []slog.Attr

type MetricsLogTaskImpl struct {
	FileDir string

	src    MetricsSource
	extras []MetricsFunc
	dl     *dailyLogger
	logger *slog.Logger

	core.DefaultTaskImpl
}

func NewMetricsLogTask(src MetricsSource, extras ...MetricsFunc) *MetricsLogTaskImpl {
	return &MetricsLogTaskImpl{
		FileDir: NewMetricsLogSetting().FileDir,
		src:     src,
		extras:  extras,
	}
}

type MetricsLogSetting struct {
	FileDir string `toml:"file_dir"`
}

func NewMetricsLogSetting() MetricsLogSetting {
	return MetricsLogSetting{FileDir: "./shares/metrics"}
}

// Setup reads the metrics_log component setting, if any, and opens the log dir.
func (m *MetricsLogTaskImpl) Setup() error {
	s := MetricsLogSetting{FileDir: m.FileDir}
	if err := core.DecodeComponentSetting(MetricsLogTaskName, &s); err != nil && !errors.Is(err, core.ErrNotFound) {
		zap.L().Error("failed to read metrics log setting", zap.Error(err))
		return err
	}
	m.FileDir = s.FileDir
	if err := common.IsDirWritable(m.FileDir); err != nil {
		zap.L().Error("failed to set up metrics log task", zap.Error(err))
		return fmt.Errorf("failed to write to %s: %w", m.FileDir, err)
	}
	m.dl = newDailyLogger(m.FileDir)
	m.logger = slog.New(slog.NewJSONHandler(m.dl, nil))
	return nil
}

func (m *MetricsLogTaskImpl) Task() {
	attrs := []slog.Attr{
		slog.Int(queueLengthKeyInMetrics, m.src.GetCurrentQueueSize()),
	}
	if di := m.src.GetDeviceInfo(); di != nil {
		attrs = append(attrs, slog.String(deviceStatusKeyInMetrics, di.Status.String()))
	}
	for _, f := range m.extras {
		attrs = append(attrs, f()...)
	}
	m.logger.LogAttrs(context.Background(), slog.LevelInfo, "Metrics", attrs...)
}

func (m *MetricsLogTaskImpl) Cleanup() {
	if err := m.dl.Close(); err != nil {
		zap.L().Error("failed to close metrics log", zap.Error(err))
	}
}

type dailyLogger struct {
	mu              sync.Mutex
	fileDir         string
	currentFileName string
	file            *os.File
	now             func() time.Time
}

func newDailyLogger(fileDir string) *dailyLogger {
	return &dailyLogger{
		fileDir: fileDir,
		now:     time.Now,
	}
}

func (dl *dailyLogger) Write(p []byte) (n int, err error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	fileName := fmt.Sprintf("metrics-%s.log", dl.now().Format("2006-01-02"))
	if dl.file == nil || dl.currentFileName != fileName {
		if dl.file != nil {
			dl.file.Close()
		}
		dl.file, err = os.OpenFile(filepath.Join(dl.fileDir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, err
		}
		dl.currentFileName = fileName
	}
	return dl.file.Write(p)
}

func (dl *dailyLogger) Close() error {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return nil
	}
	err := dl.file.Close()
	dl.file = nil
	return err
}

// OtelMetrics reports the sums collected by r, one group per metric with one
// attribute per data point. A data point without attributes is named "total".
func OtelMetrics(r sdkmetric.Reader) MetricsFunc {
	return func() []slog.Attr {
		rm := metricdata.ResourceMetrics{}
		if err := r.Collect(context.Background(), &rm); err != nil {
			zap.L().Error(fmt.Sprintf("failed to collect otel metrics/reason:%s", err))
			return nil
		}
		var attrs []slog.Attr
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				switch d := m.Data.(type) {
				case metricdata.Sum[int64]:
					attrs = append(attrs, slog.Group(m.Name, pointAttrs(d.DataPoints)...))
				case metricdata.Sum[float64]:
					attrs = append(attrs, slog.Group(m.Name, pointAttrs(d.DataPoints)...))
				}
			}
		}
		return attrs
	}
}

func pointAttrs[N int64 | float64](dps []metricdata.DataPoint[N]) []any {
	attrs := make([]any, 0, len(dps))
	for _, dp := range dps {
		key := "total"
		if dp.Attributes.Len() > 0 {
			key = dp.Attributes.Encoded(attribute.DefaultEncoder())
		}
		attrs = append(attrs, slog.Any(key, dp.Value))
	}
	return attrs
}
