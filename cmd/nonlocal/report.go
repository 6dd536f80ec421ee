package main

import (
	"io"

	"github.com/go-faster/jx"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
)

// encodeReport writes one experiment as a single JSON object.
func encodeReport(e *jx.Encoder, ex *core.Experiment) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(ex.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(ex.Param.Name) })
		e.Field("strategy", func(e *jx.Encoder) { e.Str(ex.Param.Strategy) })
		e.Field("status", func(e *jx.Encoder) { e.Str(ex.Status.String()) })
		e.Field("requested", func(e *jx.Encoder) { e.Int(ex.Param.Trials) })
		if ex.Stats != nil {
			e.Field("completed", func(e *jx.Encoder) { e.Int(ex.Stats.Completed) })
			e.Field("wins", func(e *jx.Encoder) { e.Int(ex.Stats.Wins) })
			e.Field("win_fraction", func(e *jx.Encoder) { e.Float64(ex.Stats.WinFraction()) })
			if ex.Stats.Seed != 0 {
				e.Field("seed", func(e *jx.Encoder) { e.Int64(ex.Stats.Seed) })
			}
		}
		if ex.Message != "" {
			e.Field("message", func(e *jx.Encoder) { e.Str(ex.Message) })
		}
	})
}

func writeReport(w io.Writer, ex *core.Experiment) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeReport(e, ex)
	e.RawStr("\n")
	_, err := w.Write(e.Bytes())
	return err
}
