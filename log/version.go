package log

import (
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"
)

const VersionLogTaskName = "version_log"

type VersionLogTaskImpl struct {
	core.DefaultTaskImpl
}

func (v *VersionLogTaskImpl) Task() {
	zap.L().Info("nonlocal version:" + core.Version)
}
