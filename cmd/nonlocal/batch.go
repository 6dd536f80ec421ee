package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"
)

type batchCmd struct {
	File   string `long:"file" short:"f" description:"TOML file of [[experiment]] tables" required:"true"`
	Output string `long:"output" short:"o" description:"JSON lines report path, stdout when empty"`
}

func newBatchCmd() *batchCmd {
	return &batchCmd{}
}

func (c *batchCmd) Execute(args []string) error {
	params, err := core.LoadExperiments(c.File)
	if err != nil {
		return err
	}
	s, tel, cleanup, err := setup(app.Conf)
	if err != nil {
		return err
	}
	defer cleanup()
	defer s.TearDown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.StartScheduler(ctx); err != nil {
		return err
	}
	sc, err := s.GetScheduler()
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			zap.L().Error(fmt.Sprintf("failed to create %s/reason:%s", c.Output, err))
			return err
		}
		defer f.Close()
		w = f
	}

	ids := make([]string, 0, len(params))
	for _, p := range params {
		e, err := core.NewExperiment(p)
		if err != nil {
			zap.L().Error(fmt.Sprintf("skipped experiment %q/reason:%s", p.Name, err))
			continue
		}
		if err := sc.Submit(e); err != nil {
			zap.L().Error(fmt.Sprintf("failed to submit experiment %q/reason:%s", p.Name, err))
		}
		ids = append(ids, e.ID)
	}
	zap.L().Info(fmt.Sprintf("submitted %d experiments", len(ids)))

	for _, id := range ids {
		e, err := sc.Wait(ctx, id)
		if err != nil {
			return err
		}
		if err := writeReport(w, e); err != nil {
			return err
		}
	}
	tel.logMetrics()
	return nil
}
