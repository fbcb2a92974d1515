// Package orchestrator runs the record pipeline: collect string leaves,
// translate them in batches, optionally review and repair the results,
// and write them back into copies of the records.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpere/jsontran/internal/arbiter"
	"github.com/valpere/jsontran/internal/chunker"
	"github.com/valpere/jsontran/internal/jsonvalue"
	"github.com/valpere/jsontran/internal/refiner"
	"github.com/valpere/jsontran/internal/translator"
)

type Config struct {
	TargetLang string
	// Model is sent with translation requests. Empty leaves the backend's
	// configured model in place.
	Model string
	// MemoryModel keys translation memory entries; Model when empty.
	MemoryModel string
	Temperature *float64
	JudgeModel  string
	// RepairModel is sent with repair requests. Empty leaves the repair
	// backend's configured model in place.
	RepairModel     string
	BatchSize       int
	MaxRepairRounds int
	Glossary        map[string]string
}

// Memory stores accepted translations between runs.
type Memory interface {
	Lookup(ctx context.Context, text, targetLang, model string) (string, bool, error)
	Remember(ctx context.Context, text, translation, targetLang, model string) error
}

// Stats counts what one Execute call did.
type Stats struct {
	Tasks     int
	Batches   int
	Rejected  int
	Repaired  int
	CacheHits int
}

type Result struct {
	Records []*jsonvalue.Value
	Stats   Stats
}

type Orchestrator struct {
	translator translator.BatchTranslator
	judge      arbiter.Judge
	refiner    refiner.Refiner
	memory     Memory
	config     Config
	progress   func(done, total int)
	logger     *slog.Logger
}

type Option func(*Orchestrator)

// WithJudge enables review. Rejected translations are repaired by r.
func WithJudge(j arbiter.Judge, r refiner.Refiner) Option {
	return func(o *Orchestrator) {
		o.judge = j
		o.refiner = r
	}
}

func WithMemory(m Memory) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithProgress registers a callback invoked after every batch with the
// number of finished tasks.
func WithProgress(fn func(done, total int)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(t translator.BatchTranslator, config Config, opts ...Option) *Orchestrator {
	if config.BatchSize < 1 {
		config.BatchSize = chunker.DefaultBatchSize
	}
	if config.MaxRepairRounds < 0 {
		config.MaxRepairRounds = 0
	}
	o := &Orchestrator{
		translator: t,
		config:     config,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o
}

// Execute translates the selected fields of records. With no fields the
// paths are discovered per record. When nothing matches, the input
// records are returned as they are.
func (o *Orchestrator) Execute(ctx context.Context, records []*jsonvalue.Value, fields []string) (*Result, error) {
	tasks := Collect(records, fields)
	res := &Result{Records: records}
	res.Stats.Tasks = len(tasks)
	if len(tasks) == 0 {
		o.logger.Info("no translatable fields found")
		return res, nil
	}

	translations := make([]string, len(tasks))
	pending, cached := o.recall(ctx, tasks, translations, &res.Stats)
	if o.judge != nil && len(cached) > 0 {
		if err := o.reviewCached(ctx, tasks, cached, translations, &res.Stats); err != nil {
			return nil, err
		}
	}
	done := len(cached)
	o.report(done, len(tasks))

	batches := chunker.Split(pending, o.config.BatchSize)
	for bi, batch := range batches {
		originals := make([]string, len(batch))
		for i, ti := range batch {
			originals[i] = tasks[ti].Text
		}

		o.logger.Debug("translating batch", "batch", bi+1, "of", len(batches), "size", len(batch))
		out, err := o.translator.TranslateBatch(ctx, translator.BatchRequest{
			Texts:       originals,
			TargetLang:  o.config.TargetLang,
			Model:       o.config.Model,
			Temperature: o.config.Temperature,
			Glossary:    o.config.Glossary,
		})
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", bi+1, len(batches), err)
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("batch %d/%d: %w", bi+1, len(batches), &translator.ShapeError{Want: len(batch), Got: len(out)})
		}
		res.Stats.Batches++

		if o.judge != nil {
			out, err = o.review(ctx, originals, out, &res.Stats)
			if err != nil {
				return nil, fmt.Errorf("batch %d/%d: review: %w", bi+1, len(batches), err)
			}
		}

		for i, ti := range batch {
			translations[ti] = out[i]
		}
		o.remember(ctx, originals, out)

		done += len(batch)
		o.report(done, len(tasks))
	}

	assembled, err := Assemble(records, tasks, translations)
	if err != nil {
		return nil, err
	}
	res.Records = assembled
	return res, nil
}

// recall fills translations from memory. It returns the indices of the
// tasks that still need translating and of those served from memory.
// Memory entries do not record the glossary they were made with, so texts
// mentioning a glossary term are always translated again.
func (o *Orchestrator) recall(ctx context.Context, tasks []Task, translations []string, stats *Stats) (pending, cached []int) {
	pending = make([]int, 0, len(tasks))
	for i, t := range tasks {
		if o.memory != nil && !o.mentionsGlossary(t.Text) {
			hit, ok, err := o.memory.Lookup(ctx, t.Text, o.config.TargetLang, o.memoryModel())
			if err != nil {
				o.logger.Warn("translation memory lookup failed", "error", err)
			} else if ok {
				translations[i] = hit
				cached = append(cached, i)
				continue
			}
		}
		pending = append(pending, i)
	}
	stats.CacheHits = len(cached)
	if stats.CacheHits > 0 {
		o.logger.Info("translation memory hits", "hits", stats.CacheHits, "tasks", len(tasks))
	}
	return pending, cached
}

// reviewCached puts remembered translations through the judge like fresh
// ones. Entries changed by a repair replace the remembered translation.
func (o *Orchestrator) reviewCached(ctx context.Context, tasks []Task, cached []int, translations []string, stats *Stats) error {
	batches := chunker.Split(cached, o.config.BatchSize)
	for bi, batch := range batches {
		originals := make([]string, len(batch))
		current := make([]string, len(batch))
		for i, ti := range batch {
			originals[i] = tasks[ti].Text
			current[i] = translations[ti]
		}

		out, err := o.review(ctx, originals, current, stats)
		if err != nil {
			return fmt.Errorf("cached batch %d/%d: review: %w", bi+1, len(batches), err)
		}

		var changedOriginals, changedTranslations []string
		for i, ti := range batch {
			if out[i] != current[i] {
				changedOriginals = append(changedOriginals, originals[i])
				changedTranslations = append(changedTranslations, out[i])
			}
			translations[ti] = out[i]
		}
		o.remember(ctx, changedOriginals, changedTranslations)
	}
	return nil
}

func (o *Orchestrator) mentionsGlossary(text string) bool {
	if len(o.config.Glossary) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for term := range o.config.Glossary {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) memoryModel() string {
	if o.config.MemoryModel != "" {
		return o.config.MemoryModel
	}
	return o.config.Model
}

func (o *Orchestrator) remember(ctx context.Context, originals, translations []string) {
	if o.memory == nil {
		return
	}
	for i := range originals {
		if err := o.memory.Remember(ctx, originals[i], translations[i], o.config.TargetLang, o.memoryModel()); err != nil {
			o.logger.Warn("failed to store translation", "error", err)
			return
		}
	}
}

func (o *Orchestrator) report(done, total int) {
	if o.progress != nil {
		o.progress(done, total)
	}
}
