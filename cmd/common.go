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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/valpere/jsontran/internal/arbiter"
	"github.com/valpere/jsontran/internal/config"
	"github.com/valpere/jsontran/internal/refiner"
	"github.com/valpere/jsontran/internal/store"
	"github.com/valpere/jsontran/internal/translator"
)

// pipeline holds the backends of one translate run.
type pipeline struct {
	translator translator.BatchTranslator
	judge      arbiter.Judge
	refiner    refiner.Refiner
	closers    []io.Closer
}

func (p *pipeline) Close() {
	for _, c := range p.closers {
		_ = c.Close()
	}
}

// buildPipeline constructs the translator and, when review is enabled, the
// judge and the refiner from cfg.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{}

	t, err := buildTranslator(ctx, cfg.Service, cfg.ServiceSettings(cfg.Service), logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	if c, ok := t.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
	p.translator = t

	if !cfg.Judge.Enabled {
		return p, nil
	}

	p.judge, err = buildJudge(cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	if cfg.Judge.MaxRepairRounds > 0 {
		p.refiner, err = buildRefiner(cfg, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

func buildTranslator(ctx context.Context, service string, sc translator.ServiceConfig, logger *slog.Logger) (translator.BatchTranslator, error) {
	if service == translator.ServiceGoogle {
		g, err := translator.NewGoogleTranslator(ctx, sc)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	c, err := translator.NewCompleter(service, sc, logger)
	if err != nil {
		return nil, err
	}
	return translator.NewLLMTranslator(c, translator.WithLogger(logger)), nil
}

func buildJudge(cfg *config.Config, logger *slog.Logger) (arbiter.Judge, error) {
	if cfg.Judge.Service == config.JudgeLanguage {
		return arbiter.NewLanguageJudge(), nil
	}
	c, err := translator.NewCompleter(cfg.Judge.Service, cfg.ServiceSettings(cfg.Judge.Service), logger)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}
	return arbiter.NewLLMJudge(c, arbiter.WithLogger(logger)), nil
}

func buildRefiner(cfg *config.Config, logger *slog.Logger) (refiner.Refiner, error) {
	service := cfg.RepairService()
	c, err := translator.NewCompleter(service, cfg.ServiceSettings(service), logger)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	return refiner.NewLLMRefiner(c, refiner.WithLogger(logger)), nil
}

// memoryModel keys translation memory entries. Google has no models.
func memoryModel(cfg *config.Config) string {
	if cfg.Service == translator.ServiceGoogle {
		return translator.ServiceGoogle
	}
	return cfg.Model
}

// requestModel is the model sent with translation requests.
func requestModel(cfg *config.Config) string {
	if cfg.Service == translator.ServiceGoogle {
		return ""
	}
	return cfg.Model
}

// repairModel is the model sent with repair requests. A separate repair
// service uses its own configured model.
func repairModel(cfg *config.Config) string {
	if cfg.RepairService() != cfg.Service {
		return ""
	}
	return cfg.Model
}

// openStore opens the database named by the command's --db flag, falling
// back to the configured cache path.
func openStore(flagPath string) (*store.Store, error) {
	path := flagPath
	if path == "" && appConfig != nil {
		path = appConfig.Cache.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no database path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
