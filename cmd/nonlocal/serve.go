package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/oklog/run"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/log"
	"github.com/oqtopus-team/oqtopus-nonlocal/oracle"
	"go.uber.org/zap"
)

type serveCmd struct {
	Host          string        `long:"host" description:"listen host" default:"0.0.0.0" env:"NONLOCAL_SERVE_HOST"`
	Port          int           `long:"port" description:"listen port" default:"50051" env:"NONLOCAL_SERVE_PORT"`
	MetricsPeriod time.Duration `long:"metrics-period" description:"period of the metrics log" default:"60s" env:"NONLOCAL_METRICS_PERIOD"`
	VersionPeriod time.Duration `long:"version-period" description:"period of the version log" default:"1h" env:"NONLOCAL_VERSION_PERIOD"`
}

func newServeCmd() *serveCmd {
	return &serveCmd{}
}

func (c *serveCmd) Execute(args []string) error {
	s, tel, cleanup, err := setup(app.Conf)
	if err != nil {
		return err
	}
	defer cleanup()
	defer s.TearDown()

	o, err := s.GetOracle()
	if err != nil {
		return err
	}
	address := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	server := oracle.NewServer(o, address)

	rc := core.NewRunContext(context.Background())
	rc.AddAPIServer(server, "oracle")
	served := func() []slog.Attr {
		m := server.Metrics()
		return []slog.Attr{
			slog.Int64("served", m.Served),
			slog.Int64("failed", m.Failed),
		}
	}
	if err := rc.AddPeriodicTask(log.NewMetricsLogTask(s, served, tel.metrics()), c.MetricsPeriod, log.MetricsLogTaskName); err != nil {
		return err
	}
	if err := rc.AddPeriodicTask(&log.VersionLogTaskImpl{}, c.VersionPeriod, log.VersionLogTaskName); err != nil {
		return err
	}
	rc.Add(run.SignalHandler(rc.Context, os.Interrupt, syscall.SIGTERM))

	err = rc.Run()
	var se run.SignalError
	if errors.As(err, &se) {
		zap.L().Info(fmt.Sprintf("stopped by %s", se.Signal))
		return nil
	}
	return err
}
