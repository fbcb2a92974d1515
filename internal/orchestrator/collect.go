package orchestrator

import (
	"github.com/valpere/jsontran/internal/fieldpath"
	"github.com/valpere/jsontran/internal/jsonvalue"
)

// Task is one string leaf to translate: the record it belongs to, where it
// sits inside that record, and its current text.
type Task struct {
	Record  int
	Address fieldpath.Address
	Text    string
}

// Collect flattens every matched leaf of every record into one ordered
// list: records outer, paths inner, matches in traversal order. Duplicate
// matches are kept. With no fields, each record's paths are discovered from
// its own object structure.
func Collect(records []*jsonvalue.Value, fields []string) []Task {
	configured := make([]fieldpath.Path, 0, len(fields))
	for _, f := range fields {
		configured = append(configured, fieldpath.Parse(f))
	}

	var tasks []Task
	for i, rec := range records {
		paths := configured
		if len(fields) == 0 {
			discovered := fieldpath.Discover(rec)
			paths = make([]fieldpath.Path, 0, len(discovered))
			for _, d := range discovered {
				paths = append(paths, fieldpath.Parse(d))
			}
		}
		for _, p := range paths {
			for _, m := range fieldpath.Extract(rec, p) {
				tasks = append(tasks, Task{Record: i, Address: m.Address, Text: m.Text})
			}
		}
	}
	return tasks
}
