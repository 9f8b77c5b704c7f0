// Package store archives finished backtest runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"fxopen/backtest"
)

var ErrNotFound = errors.New("run not found")

// timeLayout has a fixed-width fraction so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Kind string

const (
	KindSingle Kind = "single"
	KindDual   Kind = "dual"
	KindSweep  Kind = "sweep"
)

// Params is what produced a run.
type Params struct {
	Strategy string             `json:"strategy"`
	Config   backtest.RunConfig `json:"config"`
	DataFile string             `json:"data_file,omitempty"`
}

type Run struct {
	ID         string                  `json:"id"`
	CreatedAt  time.Time               `json:"created_at"`
	Kind       Kind                    `json:"kind"`
	Params     Params                  `json:"params"`
	Summary    backtest.Summary        `json:"summary"`
	Sessions   *backtest.SessionReport `json:"sessions,omitempty"`
	TradeCount int                     `json:"trade_count"`
	BarCount   int                     `json:"bar_count"`
}

// summaryRecord is what lands in summary_json.
type summaryRecord struct {
	Summary  backtest.Summary        `json:"summary"`
	Sessions *backtest.SessionReport `json:"sessions,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	params_json  TEXT NOT NULL,
	summary_json TEXT NOT NULL,
	trade_count  INTEGER NOT NULL,
	bar_count    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts r, assigning an ID and timestamp when they are empty.
func (s *Store) Save(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	summary, err := json.Marshal(summaryRecord{Summary: r.Summary, Sessions: r.Sessions})
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, kind, params_json, summary_json, trade_count, bar_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(timeLayout), string(r.Kind), string(params), string(summary),
		r.TradeCount, r.BarCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, kind, params_json, summary_json, trade_count, bar_count FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// List returns up to limit runs, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, kind, params_json, summary_json, trade_count, bar_count
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []*Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                     Run
		created, kind         string
		paramsRaw, summaryRaw string
	)
	if err := sc.Scan(&r.ID, &created, &kind, &paramsRaw, &summaryRaw, &r.TradeCount, &r.BarCount); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("run %s: created_at: %w", r.ID, err)
	}
	r.CreatedAt = t
	r.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(paramsRaw), &r.Params); err != nil {
		return nil, fmt.Errorf("run %s: params: %w", r.ID, err)
	}
	var sum summaryRecord
	if err := json.Unmarshal([]byte(summaryRaw), &sum); err != nil {
		return nil, fmt.Errorf("run %s: summary: %w", r.ID, err)
	}
	r.Summary, r.Sessions = sum.Summary, sum.Sessions
	return &r, nil
}
