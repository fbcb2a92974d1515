package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/valpere/jsontran/internal/config"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_TRANSLATE_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := config.Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Service != "openai" || cfg.Model != "gpt-4o-mini" || cfg.BatchSize != 10 || cfg.Temperature != 0.2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Format != "auto" || cfg.DataDir != "data" || cfg.ResultDir != "result" {
		t.Errorf("unexpected directory defaults: %+v", cfg)
	}
	if cfg.Judge.Enabled || cfg.Judge.Service != "gemini" || cfg.Judge.Model != "gemini-2.5-pro" || cfg.Judge.MaxRepairRounds != 1 {
		t.Errorf("unexpected judge defaults: %+v", cfg.Judge)
	}
	if !cfg.Cache.Enabled || cfg.Cache.DBPath != "./data/jsontran.db" {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if got := cfg.ServiceSettings("ollama").BaseURL; got != "http://localhost:11434" {
		t.Errorf("ollama base url = %q", got)
	}
}

func TestLoad_FileEnvAndProviderKeys(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "jsontran.yaml")
	content := `lang: Chinese
fields:
  - question[*][*].content
  - title
batch_size: 20
judge:
  enabled: true
  max_repair_rounds: 2
services:
  openai:
    base_url: http://proxy.local/v1
    timeout: 45s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JSONTRAN_BATCH_SIZE", "5")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JSONTRAN_SERVICES_GEMINI_API_KEY", "g-test")

	cfg, err := config.Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TargetLang != "Chinese" || len(cfg.Fields) != 2 || cfg.Fields[0] != "question[*][*].content" {
		t.Errorf("unexpected file values: %+v", cfg)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("env should override file: batch size = %d", cfg.BatchSize)
	}
	openai := cfg.ServiceSettings("openai")
	if openai.APIKey != "sk-test" || openai.BaseURL != "http://proxy.local/v1" || openai.Timeout.Seconds() != 45 {
		t.Errorf("unexpected openai settings: %+v", openai)
	}
	if got := cfg.ServiceSettings("gemini").APIKey; got != "g-test" {
		t.Errorf("gemini key = %q", got)
	}
	if !cfg.Judge.Enabled || cfg.Judge.MaxRepairRounds != 2 {
		t.Errorf("unexpected judge: %+v", cfg.Judge)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() *config.Config {
	return &config.Config{
		TargetLang:  "French",
		Service:     "ollama",
		Model:       "qwen2.5:7b",
		Temperature: 0.2,
		BatchSize:   10,
		Format:      "auto",
		DataDir:     "data",
		ResultDir:   "result",
		Judge:       config.JudgeConfig{Service: "language", MaxRepairRounds: 1},
		Cache:       config.CacheConfig{Enabled: true, DBPath: "x.db"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *config.Config)
		want   string
	}{
		{name: "valid", modify: func(*config.Config) {}},
		{name: "missing language", modify: func(c *config.Config) { c.TargetLang = " " }, want: "target language"},
		{name: "batch size", modify: func(c *config.Config) { c.BatchSize = 0 }, want: "batch size"},
		{name: "temperature", modify: func(c *config.Config) { c.Temperature = 3 }, want: "temperature"},
		{name: "format", modify: func(c *config.Config) { c.Format = "xml" }, want: "unknown format"},
		{name: "unknown service", modify: func(c *config.Config) { c.Service = "deepl" }, want: `unknown service "deepl"`},
		{name: "missing key", modify: func(c *config.Config) { c.Service = "openai" }, want: "openai requires an API key"},
		{name: "negative rounds", modify: func(c *config.Config) {
			c.Judge.Enabled = true
			c.Judge.MaxRepairRounds = -1
		}, want: "max repair rounds"},
		{name: "unknown judge", modify: func(c *config.Config) {
			c.Judge.Enabled = true
			c.Judge.Service = "google"
		}, want: "unknown judge service"},
		{name: "google cannot repair", modify: func(c *config.Config) {
			c.Service = "google"
			c.Judge.Enabled = true
		}, want: "cannot take reviewer feedback"},
		{name: "google with llm repair", modify: func(c *config.Config) {
			c.Service = "google"
			c.Judge.Enabled = true
			c.Judge.RepairService = "ollama"
		}},
		{name: "judge key", modify: func(c *config.Config) {
			c.Judge.Enabled = true
			c.Judge.Service = "gemini"
		}, want: "gemini requires an API key"},
		{name: "cache path", modify: func(c *config.Config) { c.Cache.DBPath = "" }, want: "cache database path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.TargetLang = ""
	cfg.BatchSize = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"target language", "batch size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("JSONTRAN_DOTENV_PROBE=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JSONTRAN_DOTENV_PROBE", "")
	os.Unsetenv("JSONTRAN_DOTENV_PROBE")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("JSONTRAN_DOTENV_PROBE"); got != "from-file" {
		t.Errorf("JSONTRAN_DOTENV_PROBE = %q", got)
	}

	if err := config.LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
