package orchestrator

import (
	"fmt"

	"github.com/valpere/jsontran/internal/fieldpath"
	"github.com/valpere/jsontran/internal/jsonvalue"
)

// Assemble writes translations into deep copies of records at the task
// addresses, in task order. The input records are left untouched; when two
// tasks share an address the later one wins.
func Assemble(records []*jsonvalue.Value, tasks []Task, translations []string) ([]*jsonvalue.Value, error) {
	if len(tasks) != len(translations) {
		return nil, fmt.Errorf("assemble: %d tasks but %d translations", len(tasks), len(translations))
	}

	out := make([]*jsonvalue.Value, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	for i, t := range tasks {
		if t.Record < 0 || t.Record >= len(out) {
			return nil, fmt.Errorf("assemble: task %d: record %d: %w", i, t.Record, fieldpath.ErrInvalidAddress)
		}
		if err := fieldpath.SetAt(out[t.Record], t.Address, jsonvalue.NewString(translations[i])); err != nil {
			return nil, fmt.Errorf("assemble: task %d: %w", i, err)
		}
	}
	return out, nil
}
