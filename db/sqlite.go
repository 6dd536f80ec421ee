package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_ns INTEGER NOT NULL,
	doc        TEXT NOT NULL
)`

// SQLiteDB keeps experiments as JSON documents in a SQLite file.
type SQLiteDB struct {
	path string
	db   *sql.DB
}

func (s *SQLiteDB) Setup(c *core.Conf) error {
	zap.L().Debug(fmt.Sprintf("setting up SQLite DB at %s", c.SQLitePath))
	s.path = c.SQLitePath
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to open %s/reason:%s", s.path, err))
		return err
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		zap.L().Error(fmt.Sprintf("failed to create schema/reason:%s", err))
		return errors.Wrap(err, "create schema")
	}
	s.db = db
	return nil
}

func (s *SQLiteDB) Insert(e *core.Experiment) error {
	doc, err := jsonIter.MarshalToString(e)
	if err != nil {
		return errors.Wrap(err, "marshal experiment")
	}
	res, err := s.db.Exec(
		`INSERT INTO experiments (id, name, status, created_ns, doc) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		e.ID, e.Param.Name, e.Status.String(), time.Time(e.Created).UnixNano(), doc)
	if err != nil {
		zap.L().Error(fmt.Sprintf("[SQLiteDB] failed to insert %s/reason:%s", e.ID, err))
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(core.ErrorExperimentIDConflict, "id %s", e.ID)
	}
	return nil
}

func (s *SQLiteDB) Get(id string) (*core.Experiment, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM experiments WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(core.ErrNotFound, "experiment %s", id)
	}
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

func (s *SQLiteDB) Update(e *core.Experiment) error {
	doc, err := jsonIter.MarshalToString(e)
	if err != nil {
		return errors.Wrap(err, "marshal experiment")
	}
	res, err := s.db.Exec(`UPDATE experiments SET status = ?, doc = ? WHERE id = ?`,
		e.Status.String(), doc, e.ID)
	if err != nil {
		zap.L().Error(fmt.Sprintf("[SQLiteDB] failed to update %s/reason:%s", e.ID, err))
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(core.ErrNotFound, "experiment %s", e.ID)
	}
	zap.L().Debug(fmt.Sprintf("[SQLiteDB] updated %s/status:%s", e.ID, e.Status))
	return nil
}

// List returns the experiments ordered by creation time.
func (s *SQLiteDB) List() ([]*core.Experiment, error) {
	rows, err := s.db.Query(`SELECT doc FROM experiments ORDER BY created_ns, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*core.Experiment{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		e, err := decode(doc)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decode(doc string) (*core.Experiment, error) {
	e := &core.Experiment{}
	if err := jsonIter.UnmarshalFromString(doc, e); err != nil {
		return nil, errors.Wrap(err, "unmarshal experiment")
	}
	return e, nil
}
