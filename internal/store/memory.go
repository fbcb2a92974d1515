package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID          string
	SourceText  string
	TargetLang  string
	Model       string
	Translation string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// Lookup returns the remembered translation of text. Invalidated entries
// are treated as missing. A hit bumps the entry's usage counter.
func (s *Store) Lookup(ctx context.Context, text, targetLang, model string) (string, bool, error) {
	var id, translation string
	var invalidated bool

	err := s.db.QueryRowContext(ctx,
		`SELECT id, translation, invalidated FROM translation_memory WHERE source_text = ? AND target_lang = ? AND model = ?`,
		normalizeText(text), normalizeLang(targetLang), model).Scan(&id, &translation, &invalidated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`,
		time.Now(), id)
	return translation, true, err
}

// Remember stores an accepted translation, replacing any previous entry for
// the same text, language and model.
func (s *Store) Remember(ctx context.Context, text, translation, targetLang, model string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_memory (id, source_text, target_lang, model, translation, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, FALSE, ?, ?)
		 ON CONFLICT(source_text, target_lang, model) DO UPDATE SET
		   translation = excluded.translation, invalidated = FALSE, last_used = excluded.last_used`,
		uuid.NewString(), normalizeText(text), normalizeLang(targetLang), model, translation, now, now)
	return err
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res, id)
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, target_lang, model, translation, usage_count, invalidated, last_used
		 FROM translation_memory ORDER BY last_used DESC, source_text`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.TargetLang, &e.Model, &e.Translation, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
