package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"github.com/oqtopus-team/oqtopus-nonlocal/game"
	"github.com/oqtopus-team/oqtopus-nonlocal/harness"
	"github.com/oqtopus-team/oqtopus-nonlocal/sampler"
	"github.com/oqtopus-team/oqtopus-nonlocal/scheduler"
	"go.uber.org/zap"
)

type playCmd struct {
	Game      string        `long:"game" description:"game to play" default:"chsh"`
	Strategy  string        `long:"strategy" description:"strategy of the players" default:"quantum" choice:"classical" choice:"quantum" choice:"zero"`
	Sampler   string        `long:"sampler" description:"question sampler" default:"seeded" choice:"seeded" choice:"oracle"`
	Trials    int           `long:"trials" description:"number of trials" default:"1000"`
	Seed      int64         `long:"seed" description:"seed of the question sampler (0 means time based)" default:"0"`
	Workers   int           `long:"workers" description:"number of trials played at once" default:"1"`
	Timeout   time.Duration `long:"timeout" description:"deadline of the run, 0 means none" default:"0s"`
	MaxTrials int           `long:"max-trials" description:"cap of trials actually played, 0 means none" default:"0"`
	Verbose   bool          `long:"verbose" short:"v" description:"print the full statistics"`
}

func newPlayCmd() *playCmd {
	return &playCmd{}
}

func (c *playCmd) param() core.ExperimentParam {
	return core.ExperimentParam{
		Name:      "play",
		Game:      c.Game,
		Strategy:  c.Strategy,
		Sampler:   c.Sampler,
		Trials:    c.Trials,
		Seed:      c.Seed,
		Workers:   c.Workers,
		MaxTrials: c.MaxTrials,
		Timeout:   c.Timeout,
	}
}

func (c *playCmd) Execute(args []string) error {
	s, tel, cleanup, err := setup(app.Conf)
	if err != nil {
		return err
	}
	defer cleanup()
	defer s.TearDown()

	p := c.param()
	if err := p.Validate(); err != nil {
		return err
	}
	o, err := s.GetOracle()
	if err != nil {
		return err
	}
	rule, err := game.NewRule(p.Game)
	if err != nil {
		return err
	}
	strategy, err := game.NewStrategy(p.Strategy, o)
	if err != nil {
		return err
	}
	qs, err := sampler.New(p.Sampler, p.Seed, o)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	st, err := harness.New(scheduler.Options(p)...).Run(ctx, strategy, rule, qs, p.Trials)
	if err != nil && !errors.Is(err, core.ErrPartialResult) {
		zap.L().Error(fmt.Sprintf("failed to play %s/reason:%s", p.Game, err))
		return err
	}
	fmt.Printf("Fraction of games won: %.4f\n", st.WinFraction())
	if c.Seed == 0 && st.Seed != 0 {
		fmt.Printf("Questions drawn with seed %d\n", st.Seed)
	}
	if st.Partial {
		fmt.Printf("Partial result: %d of %d trials completed (%s)\n", st.Completed, st.Requested, err)
	}
	tel.logMetrics()
	if c.Verbose {
		fmt.Println(st.ToString())
	}
	return nil
}
