package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

type MemoryDB struct {
	dbMap map[string]*Experiment
	mu    sync.RWMutex
}

func (d *MemoryDB) Setup(_ *Conf) error {
	d.dbMap = make(map[string]*Experiment)
	return nil
}

func (d *MemoryDB) Insert(e *Experiment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dbMap[e.ID]; ok {
		return errors.Wrapf(ErrorExperimentIDConflict, "id %s", e.ID)
	}
	d.dbMap[e.ID] = e.Clone()
	return nil
}

func (d *MemoryDB) Get(id string) (*Experiment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if val, ok := d.dbMap[id]; ok {
		return val.Clone(), nil
	}
	err := errorsNotFound("experiment", id)
	zap.L().Info("[MemoryDB]", zap.Error(err))
	return nil, err
}

func (d *MemoryDB) Update(e *Experiment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dbMap[e.ID]; !ok {
		return errorsNotFound("experiment", e.ID)
	}
	d.dbMap[e.ID] = e.Clone()
	zap.L().Debug(fmt.Sprintf("[MemoryDB] updated %s/status:%s", e.ID, e.Status))
	return nil
}

// List returns the experiments ordered by creation time.
func (d *MemoryDB) List() ([]*Experiment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list := make([]*Experiment, 0, len(d.dbMap))
	for _, e := range d.dbMap {
		list = append(list, e.Clone())
	}
	sort.SliceStable(list, func(i, j int) bool {
		return time.Time(list[i].Created).Before(time.Time(list[j].Created))
	})
	return list, nil
}

func (d *MemoryDB) Close() error {
	return nil
}
