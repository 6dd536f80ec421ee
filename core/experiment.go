package core

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
	"github.com/oqtopus-team/oqtopus-nonlocal/common"
	"go.uber.org/zap"
)

type Status int

const (
	READY     Status = iota // Queued and never processed.
	RUNNING                 // Trials are being played.
	SUCCEEDED               // All requested trials completed.
	PARTIAL                 // Stopped early by a deadline or a trial cap.
	FAILED                  // Aborted with an error.
)

func (s Status) String() string {
	switch s {
	case READY:
		return "ready"
	case RUNNING:
		return "running"
	case SUCCEEDED:
		return "succeeded"
	case PARTIAL:
		return "partial"
	case FAILED:
		return "failed"
	default:
		return "unknown"
	}
}

func ToStatus(s string) (Status, error) {
	switch s {
	case "ready":
		return READY, nil
	case "running":
		return RUNNING, nil
	case "succeeded":
		return SUCCEEDED, nil
	case "partial":
		return PARTIAL, nil
	case "failed":
		return FAILED, nil
	default:
		return 0, fmt.Errorf("unknown status: %s", s)
	}
}

func (s Status) IsFinished() bool {
	return s == SUCCEEDED || s == PARTIAL || s == FAILED
}

const (
	DefaultGame    = "chsh"
	DefaultSampler = "seeded"
)

type ExperimentParam struct {
	Name      string        `toml:"name" json:"name"`
	Game      string        `toml:"game" json:"game"`
	Strategy  string        `toml:"strategy" json:"strategy"`
	Sampler   string        `toml:"sampler" json:"sampler"`
	Trials    int           `toml:"trials" json:"trials"`
	Seed      int64         `toml:"seed" json:"seed"`
	Workers   int           `toml:"workers" json:"workers"`
	MaxTrials int           `toml:"max_trials" json:"max_trials"`
	Timeout   time.Duration `toml:"timeout" json:"timeout"`
	Outcomes  bool          `toml:"outcomes" json:"outcomes"`
}

func (p *ExperimentParam) Validate() error {
	if p.Trials <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "trials(%d) must be greater than 0", p.Trials)
	}
	if p.Strategy == "" {
		return errors.Wrap(ErrInvalidArgument, "strategy is empty")
	}
	if p.Workers < 0 {
		return errors.Wrapf(ErrInvalidArgument, "workers(%d) must not be negative", p.Workers)
	}
	if p.Timeout < 0 {
		return errors.Wrapf(ErrInvalidArgument, "timeout(%s) must not be negative", p.Timeout)
	}
	if p.MaxTrials < 0 {
		return errors.Wrapf(ErrInvalidArgument, "max_trials(%d) must not be negative", p.MaxTrials)
	}
	return nil
}

type Experiment struct {
	ID      string          `json:"id"`
	Param   ExperimentParam `json:"param"`
	Status  Status          `json:"status"`
	Stats   *Stats          `json:"stats"`
	Message string          `json:"message"`
	Created strfmt.DateTime `json:"created"`
	Ended   strfmt.DateTime `json:"ended"`
}

func NewExperiment(p ExperimentParam) (*Experiment, error) {
	if p.Game == "" {
		p.Game = DefaultGame
	}
	if p.Sampler == "" {
		p.Sampler = DefaultSampler
	}
	if err := p.Validate(); err != nil {
		zap.L().Info(fmt.Sprintf("failed to validate experiment %q. Reason:%s", p.Name, err))
		return nil, err
	}
	return &Experiment{
		ID:      uuid.NewString(),
		Param:   p,
		Status:  READY,
		Created: strfmt.DateTime(time.Now()),
	}, nil
}

func (e *Experiment) Clone() *Experiment {
	c := deepcopy.Copy(e).(*Experiment)
	c.Created = *e.Created.DeepCopy()
	c.Ended = *e.Ended.DeepCopy()
	if e.Stats != nil {
		// deepcopy skips the unexported fields of strfmt.DateTime
		c.Stats.Started = *e.Stats.Started.DeepCopy()
		c.Stats.Ended = *e.Stats.Ended.DeepCopy()
	}
	return c
}

func SetFailureWithError(e *Experiment, err error) (msg string) {
	msg = err.Error()
	e.Message = msg
	e.Status = FAILED
	e.Ended = strfmt.DateTime(time.Now())
	return msg
}

type experimentFile struct {
	Experiments []ExperimentParam `toml:"experiment"`
}

// LoadExperiments reads [[experiment]] tables from a TOML file.
func LoadExperiments(path string) ([]ExperimentParam, error) {
	blob, err := common.ReadSettingsFile(path)
	if err != nil {
		return nil, err
	}
	return ParseExperiments(blob)
}

func ParseExperiments(blob string) ([]ExperimentParam, error) {
	f := &experimentFile{}
	if _, err := toml.Decode(blob, f); err != nil {
		zap.L().Error(fmt.Sprintf("failed to decode experiments/reason:%s", err))
		return nil, errors.Wrap(err, "decode experiments")
	}
	return f.Experiments, nil
}
