package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one processed input file.
type Run struct {
	ID         string
	File       string
	TargetLang string
	Model      string
	Tasks      int
	Batches    int
	Rejected   int
	Repaired   int
	CacheHits  int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordRun stores run and returns its ID. A missing ID is generated.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, file, target_lang, model, tasks, batches, rejected, repaired, cache_hits, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.File, run.TargetLang, run.Model, run.Tasks, run.Batches, run.Rejected, run.Repaired,
		run.CacheHits, run.Status, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first. limit ≤ 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, file, target_lang, model, tasks, batches, rejected, repaired, cache_hits, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, file`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.File, &r.TargetLang, &r.Model, &r.Tasks, &r.Batches, &r.Rejected,
			&r.Repaired, &r.CacheHits, &r.Status, &errText, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
