// Package store keeps the history of training runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/baldhumanity/flappyfeller/trainer"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusStopped  = "stopped"
	StatusFailed   = "failed"
)

// Run is one training session.
type Run struct {
	ID          string     `json:"id"`
	Strategy    string     `json:"strategy"`
	Seed        int64      `json:"seed"`
	Population  int        `json:"population"`
	Config      string     `json:"config,omitempty"`
	Status      string     `json:"status"`
	Best        float64    `json:"best"`
	Generations int        `json:"generations"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Store is a SQLite backed run history. It implements trainer.Recorder.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

var _ trainer.Recorder = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a run in the running state and returns its ID. An empty
// ID gets a fresh UUID; a zero StartedAt becomes now.
func (s *Store) CreateRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, seed, population, config, status, best, started_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		run.ID, run.Strategy, run.Seed, run.Population, run.Config, StatusRunning, formatTime(run.StartedAt))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// RecordGeneration stores the summary of one generation and raises the
// run's best score when the generation beat it.
func (s *Store) RecordGeneration(ctx context.Context, runID string, sum trainer.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE runs SET best = MAX(best, ?) WHERE id = ?`, sum.Best, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO generations (run_id, generation, best, mean, median, species, population, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, sum.Generation, sum.Best, sum.Mean, sum.Median, sum.Species, sum.Population, int64(sum.Duration))
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return tx.Commit()
}

// FinishRun closes a run with the given status.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

const runColumns = `
	r.id, r.strategy, r.seed, r.population, COALESCE(r.config, ''), r.status, r.best,
	r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM generations g WHERE g.run_id = r.id)`

// Runs lists every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run returns a single run.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// Generations returns the summaries of a run in generation order.
func (s *Store) Generations(ctx context.Context, runID string) ([]trainer.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check run existence: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT generation, best, mean, median, species, population, duration_ns
		FROM generations WHERE run_id = ? ORDER BY generation`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	gens := []trainer.Summary{}
	for rows.Next() {
		var g trainer.Summary
		var ns int64
		if err := rows.Scan(&g.Generation, &g.Best, &g.Mean, &g.Median, &g.Species, &g.Population, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		g.Duration = time.Duration(ns)
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started string
	var finished sql.NullString
	err := row.Scan(&run.ID, &run.Strategy, &run.Seed, &run.Population, &run.Config, &run.Status, &run.Best,
		&started, &finished, &run.Generations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return run, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return run, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// timeLayout has fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
