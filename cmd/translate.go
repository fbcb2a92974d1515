/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/valpere/jsontran/internal/config"
	"github.com/valpere/jsontran/internal/logging"
	"github.com/valpere/jsontran/internal/orchestrator"
	"github.com/valpere/jsontran/internal/recordio"
	"github.com/valpere/jsontran/internal/store"
	"github.com/valpere/jsontran/internal/translator"
)

const lockFileName = ".jsontran.lock"

// ErrLocked is returned when another run holds the result directory.
var ErrLocked = errors.New("result directory is locked by another jsontran run")

var noCache bool

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate every record file in the data directory",
	Long: `Translate the selected string fields of every *.json and *.jsonl file in
the data directory and write the results under the same names to the result
directory.

Fields are addressed with paths such as "question[*][*].content"; "[*]"
visits every element of an array. Without --fields every string leaf of each
record is translated.

Review:
  --judge              Review each batch and repair rejected translations
  --judge-service      Reviewer backend, or "language" for a local language check
  --max-repair-rounds  Repair rounds per batch (0 = review only)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig
		if noCache {
			cfg.Cache.Enabled = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runTranslate(ctx, &cfg, cmd.OutOrStdout(), logger)
	},
}

// fileOutcome pairs a processed file with its error, if any.
type fileOutcome struct {
	run store.Run
	err error
}

func runTranslate(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	format, err := recordio.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	files, err := recordio.List(cfg.DataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No .json or .jsonl files found in %s\n", cfg.DataDir)
		return nil
	}

	if err := os.MkdirAll(cfg.ResultDir, 0o755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.ResultDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, cfg.ResultDir)
	}
	defer func() { _ = lock.Unlock() }()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	var db *store.Store
	if cfg.Cache.DBPath != "" {
		db, err = openStore(cfg.Cache.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	ocfg := orchestrator.Config{
		TargetLang:      cfg.TargetLang,
		Model:           requestModel(cfg),
		MemoryModel:     memoryModel(cfg),
		Temperature:     translator.Float(cfg.Temperature),
		JudgeModel:      cfg.Judge.Model,
		RepairModel:     repairModel(cfg),
		BatchSize:       cfg.BatchSize,
		MaxRepairRounds: cfg.Judge.MaxRepairRounds,
	}
	if db != nil {
		ocfg.Glossary, err = db.GetGlossaryTerms(ctx, cfg.TargetLang)
		if err != nil {
			return fmt.Errorf("failed to load glossary: %w", err)
		}
		if len(ocfg.Glossary) > 0 {
			logger.Info("glossary loaded", "lang", cfg.TargetLang, "terms", len(ocfg.Glossary))
		}
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if p.judge != nil {
		opts = append(opts, orchestrator.WithJudge(p.judge, p.refiner))
	}
	if db != nil && cfg.Cache.Enabled {
		opts = append(opts, orchestrator.WithMemory(db))
	}

	logger.Info("translation started",
		"files", len(files), "lang", cfg.TargetLang, "service", cfg.Service, "model", cfg.Model,
		"judge", cfg.Judge.Enabled)

	var outcomes []fileOutcome
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		run, err := translateFile(ctx, p.translator, path, format, cfg, ocfg, opts, logger)
		if err != nil {
			logger.Error("file failed", "file", run.File, "error", err)
		}
		if db != nil {
			if _, rerr := db.RecordRun(context.WithoutCancel(ctx), run); rerr != nil {
				logger.Warn("failed to record run", "file", run.File, "error", rerr)
			}
		}
		outcomes = append(outcomes, fileOutcome{run: run, err: err})
	}

	return summarize(out, outcomes, len(files), ctx.Err())
}

// translateFile runs one input file through the pipeline and writes its
// result. The returned run is filled in even when err is non-nil.
func translateFile(ctx context.Context, t translator.BatchTranslator, path string, format recordio.Format,
	cfg *config.Config, ocfg orchestrator.Config, opts []orchestrator.Option, logger *slog.Logger) (store.Run, error) {
	name := filepath.Base(path)
	run := store.Run{
		File:       name,
		TargetLang: cfg.TargetLang,
		Model:      ocfg.MemoryModel,
		StartedAt:  time.Now(),
	}
	finish := func(err error) (store.Run, error) {
		run.FinishedAt = time.Now()
		run.Status = store.RunSucceeded
		if err != nil {
			run.Status = store.RunFailed
			run.Error = err.Error()
		}
		return run, err
	}

	doc, err := recordio.Read(path, format)
	if err != nil {
		return finish(err)
	}
	logger.Info("processing file", "file", name, "records", len(doc.Records), "format", doc.Format)

	if logging.IsTerminal(os.Stderr) {
		var bar *progressbar.ProgressBar
		defer func() {
			if bar != nil {
				_ = bar.Finish()
			}
		}()
		opts = append(slices.Clip(opts), orchestrator.WithProgress(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(name, total)
			}
			_ = bar.Set(done)
		}))
	}

	res, err := orchestrator.New(t, ocfg, opts...).Execute(ctx, doc.Records, cfg.Fields)
	if res != nil {
		run.Tasks = res.Stats.Tasks
		run.Batches = res.Stats.Batches
		run.Rejected = res.Stats.Rejected
		run.Repaired = res.Stats.Repaired
		run.CacheHits = res.Stats.CacheHits
	}
	if err != nil {
		return finish(fmt.Errorf("%s: %w", name, err))
	}

	doc.Records = res.Records
	if err := recordio.Write(filepath.Join(cfg.ResultDir, name), doc); err != nil {
		return finish(err)
	}
	logger.Info("file translated", "file", name, "tasks", run.Tasks, "batches", run.Batches,
		"cache_hits", run.CacheHits, "rejected", run.Rejected, "repaired", run.Repaired)
	return finish(nil)
}

func newProgressBar(name string, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func summarize(out io.Writer, outcomes []fileOutcome, total int, ctxErr error) error {
	var failed, tasks, hits, repaired int
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Fprintf(out, "FAILED %s: %v\n", o.run.File, o.err)
			continue
		}
		tasks += o.run.Tasks
		hits += o.run.CacheHits
		repaired += o.run.Repaired
		fmt.Fprintf(out, "Translated %s (%d texts)\n", o.run.File, o.run.Tasks)
	}
	fmt.Fprintf(out, "Files: %d/%d succeeded, texts: %d, from cache: %d, repaired: %d\n",
		len(outcomes)-failed, total, tasks, hits, repaired)

	if ctxErr != nil {
		return fmt.Errorf("interrupted: %w", ctxErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, total)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringP("lang", "l", "", "Target language, e.g. Chinese (required)")
	f.StringSlice("fields", nil, "Field paths to translate (repeatable or comma-separated; default: all string leaves)")
	f.StringP("model", "m", "gpt-4o-mini", "Translation model")
	f.StringP("service", "s", translator.ServiceOpenAI, "Translation service: openai, openrouter, ollama, gemini, google")
	f.Int("batch-size", 10, "Texts per translation request")
	f.Float64("temperature", 0.2, "Sampling temperature")
	f.String("format", "auto", "Input format: auto, json, jsonl")
	f.String("data-dir", "data", "Directory with input files")
	f.String("result-dir", "result", "Directory for translated files")

	f.Bool("judge", false, "Review translations and repair rejected ones")
	f.String("judge-service", translator.ServiceGemini, "Judge backend: gemini, openai, openrouter, ollama, language")
	f.String("judge-model", "gemini-2.5-pro", "Judge model")
	f.Int("max-repair-rounds", 1, "Repair rounds per batch (0 = review only)")
	f.String("repair-service", "", "Backend for repairs (default: the translation service)")

	f.String("db", "./data/jsontran.db", "Database path for translation memory, glossary and run log")
	f.BoolVar(&noCache, "no-cache", false, "Disable translation memory")
	f.String("ollama-url", translator.DefaultOllamaBaseURL, "Ollama base URL")

	for _, b := range [][2]string{
		{"lang", "lang"},
		{"fields", "fields"},
		{"model", "model"},
		{"service", "service"},
		{"batch_size", "batch-size"},
		{"temperature", "temperature"},
		{"format", "format"},
		{"data_dir", "data-dir"},
		{"result_dir", "result-dir"},
		{"judge.enabled", "judge"},
		{"judge.service", "judge-service"},
		{"judge.model", "judge-model"},
		{"judge.max_repair_rounds", "max-repair-rounds"},
		{"judge.repair_service", "repair-service"},
		{"cache.db", "db"},
		{"services.ollama.base_url", "ollama-url"},
	} {
		_ = v.BindPFlag(b[0], f.Lookup(b[1]))
	}
}
