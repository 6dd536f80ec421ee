package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/massn/envordot"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/db"
	"github.com/oqtopus-team/oqtopus-nonlocal/log"
	"github.com/oqtopus-team/oqtopus-nonlocal/oracle"
	"github.com/oqtopus-team/oqtopus-nonlocal/scheduler"

	"go.uber.org/dig"
	"go.uber.org/zap"
)

var versionByBuildFlag string
var parser *flags.Parser
var app *Nonlocal

func init() {
	if err := envordot.Load(false, ".env"); err != nil {
		fmt.Printf("Not found \".env\" file. Use only environment variables. Reason:%s\n", err.Error())
	} else {
		fmt.Println("Found \".env\" file. Environment variables are preferred, " +
			"but non-conflicting variables are those in the \".env\" file.")
	}
	app = &Nonlocal{}
	setParser(app)
}

type Nonlocal struct {
	DIContainerParameters *DIContainerParameters
	Conf                  *core.Conf
}

type DIContainerParameters struct {
	Oracle    string `long:"oracle" description:"oracle type" default:"simulator" choice:"simulator" choice:"gateway" env:"NONLOCAL_ORACLE_TYPE"`
	Store     string `long:"store" description:"result store type" default:"memory" choice:"memory" choice:"sqlite" env:"NONLOCAL_STORE_TYPE"`
	Scheduler string `long:"scheduler" description:"scheduler type" default:"normal" choice:"normal" env:"NONLOCAL_SCHEDULER_TYPE"`
}

func setParser(n *Nonlocal) {
	parser = flags.NewParser(n, flags.Default)
	parser.ShortDescription = "nonlocal game engine"
	parser.LongDescription = "plays nonlocal games such as CHSH against classical strategies and quantum oracles."
	parser.AddCommand("play", "play one game run", "play trials of a game and print the fraction of games won", newPlayCmd())
	parser.AddCommand("batch", "run experiments", "queue the experiments of a TOML file and report their results", newBatchCmd())
	parser.AddCommand("serve", "serve the oracle", "serve the configured oracle over gRPC", newServeCmd())
	parser.AddCommand("circuits", "print measurement programs", "print the OpenQASM programs of the entangled CHSH strategy", newCircuitsCmd())
}

func parse() {
	if _, err := parser.Parse(); err != nil {
		code := 1
		if fe, ok := err.(*flags.Error); ok {
			if fe.Type == flags.ErrHelp {
				code = 0
			}
		}
		if code == 1 {
			fmt.Printf("failed to parse flags, because %s\n", err)
		}
		os.Exit(code)
	}
}

func (n *Nonlocal) provideDIContainer(conf *core.Conf) (c *dig.Container, err error) {
	c = dig.New()
	err = c.Provide(func() (core.Oracle, error) {
		var o core.Oracle
		switch n.DIContainerParameters.Oracle {
		case "simulator":
			o = oracle.NewSimulatorOracle()
		case "gateway":
			o = oracle.NewGatewayOracle()
		default:
			return nil, fmt.Errorf("%s is an unknown oracle", n.DIContainerParameters.Oracle)
		}
		if conf.OracleRetries > 1 {
			interval := time.Duration(conf.OracleRetryIntervalMs) * time.Millisecond
			o = oracle.NewRetryOracle(o, conf.OracleRetries, interval)
		}
		return o, nil
	})
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func() (core.ResultStore, error) {
		switch n.DIContainerParameters.Store {
		case "memory":
			return &core.MemoryDB{}, nil
		case "sqlite":
			return &db.SQLiteDB{}, nil
		default:
			return nil, fmt.Errorf("%s is an unknown store", n.DIContainerParameters.Store)
		}
	})
	if err != nil {
		return &dig.Container{}, err
	}
	err = c.Provide(func(o core.Oracle, d core.ResultStore) (core.Scheduler, error) {
		switch n.DIContainerParameters.Scheduler {
		case "normal":
			return scheduler.NewNormalScheduler(o, d), nil
		default:
			return nil, fmt.Errorf("%s is an unknown scheduler", n.DIContainerParameters.Scheduler)
		}
	})
	if err != nil {
		return &dig.Container{}, err
	}
	return c, nil
}

func main() {
	parse()
}

// setup prepares logging, settings, telemetry and the system components shared
// by the commands. The returned cleanup shuts telemetry down and flushes the
// logger.
func setup(conf *core.Conf) (*core.SystemComponents, *telemetry, func(), error) {
	logger := setZap(conf)
	syncLogger := func() { _ = logger.Sync() }

	core.ResetSetting()
	registerSetting()
	if _, err := os.Stat(conf.SettingPath); err == nil {
		if err := core.ParseSettingFromPath(conf.SettingPath); err != nil {
			zap.L().Error(fmt.Sprintf("failed to parse settings/reason:%s", err))
			syncLogger()
			return nil, nil, nil, err
		}
	} else {
		zap.L().Info(fmt.Sprintf("no setting file at %s, using defaults", conf.SettingPath))
	}

	s, err := setupSystemComponents(conf)
	if err != nil {
		syncLogger()
		return nil, nil, nil, err
	}
	core.SetInfo(conf)

	tel, err := setupTelemetry(context.Background(), conf)
	if err != nil {
		_ = s.TearDown()
		syncLogger()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = tel.shutdown(context.Background())
		syncLogger()
	}
	return s, tel, cleanup, nil
}

func setupSystemComponents(conf *core.Conf) (*core.SystemComponents, error) {
	core.SetVersion(conf, versionByBuildFlag)
	zap.L().Debug(fmt.Sprintf("Providing DI Container with parameters %+v", app.DIContainerParameters))

	container, err := app.provideDIContainer(conf)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to set up DI-Container. Reason:%s", err))
		return nil, err
	}
	zap.L().Debug("Setting up System Components")
	s := core.NewSystemComponents(container)
	if err := s.Setup(conf); err != nil {
		zap.L().Error(fmt.Sprintf("failed to set up Container. Reason:%s", err))
		return nil, err
	}
	return s, nil
}

func registerSetting() {
	core.RegisterSetting(oracle.GatewaySettingKey, oracle.NewDefaultGatewaySetting())
	core.RegisterSetting(log.MetricsLogTaskName, log.NewMetricsLogSetting())
}
