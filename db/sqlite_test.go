//go:build unit
// +build unit

package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqtopus-team/oqtopus-nonlocal/core"
)

func newExperiment(t *testing.T, name string, created time.Time) *core.Experiment {
	e, err := core.NewExperiment(core.ExperimentParam{
		Name:     name,
		Strategy: "classical",
		Trials:   100,
		Seed:     4,
		Timeout:  time.Second,
	})
	require.Nil(t, err)
	e.Created = strfmt.DateTime(created)
	return e
}

func TestResultStores(t *testing.T) {
	stores := map[string]func(t *testing.T) core.ResultStore{
		"memory": func(t *testing.T) core.ResultStore {
			return &core.MemoryDB{}
		},
		"sqlite": func(t *testing.T) core.ResultStore {
			return &SQLiteDB{}
		},
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			conf := &core.Conf{SQLitePath: filepath.Join(t.TempDir(), "shares", "nonlocal.db")}
			require.Nil(t, s.Setup(conf))
			defer s.Close()

			base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
			second := newExperiment(t, "second", base.Add(time.Minute))
			first := newExperiment(t, "first", base)
			require.Nil(t, s.Insert(second))
			require.Nil(t, s.Insert(first))
			assert.True(t, errors.Is(s.Insert(first), core.ErrorExperimentIDConflict))

			got, err := s.Get(first.ID)
			require.Nil(t, err)
			assert.Equal(t, first.Param, got.Param)
			assert.Equal(t, core.READY, got.Status)
			assert.Nil(t, got.Stats)

			first.Status = core.PARTIAL
			first.Message = "partial result"
			first.Stats = &core.Stats{ID: "run", Requested: 100, Completed: 40, Wins: 30, Partial: true,
				Outcomes: []bool{true, false, true}}
			require.Nil(t, s.Update(first))
			got, err = s.Get(first.ID)
			require.Nil(t, err)
			assert.Equal(t, core.PARTIAL, got.Status)
			assert.Equal(t, "partial result", got.Message)
			require.NotNil(t, got.Stats)
			assert.Equal(t, 0.75, got.Stats.WinFraction())
			assert.Equal(t, []int{1, 1, 2}, got.Stats.WinCounts())

			list, err := s.List()
			require.Nil(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "first", list[0].Param.Name)
			assert.Equal(t, "second", list[1].Param.Name)

			_, err = s.Get("missing")
			assert.True(t, errors.Is(err, core.ErrNotFound))
			missing := newExperiment(t, "missing", base)
			assert.True(t, errors.Is(s.Update(missing), core.ErrNotFound))
		})
	}
}

func TestSQLiteDBPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonlocal.db")
	conf := &core.Conf{SQLitePath: path}

	s := &SQLiteDB{}
	require.Nil(t, s.Setup(conf))
	e := newExperiment(t, "kept", time.Now())
	require.Nil(t, s.Insert(e))
	require.Nil(t, s.Close())

	reopened := &SQLiteDB{}
	require.Nil(t, reopened.Setup(conf))
	defer reopened.Close()
	got, err := reopened.Get(e.ID)
	require.Nil(t, err)
	assert.Equal(t, "kept", got.Param.Name)
}
