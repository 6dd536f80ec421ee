package core

import (
	"fmt"

	"go.uber.org/zap"
)

const NoVersion = "no_version_info"

var Version string

// SetVersion prefers the build flag, then the configured version.
func SetVersion(c *Conf, versionByBuildFlag string) {
	switch {
	case versionByBuildFlag != "":
		Version = versionByBuildFlag
	case c.Version != "":
		Version = c.Version
	default:
		Version = NoVersion
	}
	zap.L().Info(fmt.Sprintf("Version is %s", Version))
}

type NonSecretConf struct {
	DevMode            bool
	LogLevel           string
	LogDir             string
	EnableFileLog      bool
	LogRotationMaxDays int
	QueueMaxSize       int
	OracleRetries      int
}

type Info struct {
	Version string
	Conf    *NonSecretConf
}

var CurrentInfo *Info

func SetInfo(c *Conf) {
	CurrentInfo = &Info{
		Version: Version,
		Conf: &NonSecretConf{
			DevMode:            c.DevMode,
			LogLevel:           c.LogLevel,
			LogDir:             c.LogDir,
			EnableFileLog:      c.EnableFileLog,
			LogRotationMaxDays: c.LogRotationMaxDays,
			QueueMaxSize:       c.QueueMaxSize,
			OracleRetries:      c.OracleRetries,
		},
	}
}
