// Package config loads run settings from a config file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/valpere/jsontran/internal/recordio"
	"github.com/valpere/jsontran/internal/translator"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "JSONTRAN"

// JudgeLanguage selects the local language-identity judge.
const JudgeLanguage = "language"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type JudgeConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Service         string `mapstructure:"service"`
	Model           string `mapstructure:"model"`
	MaxRepairRounds int    `mapstructure:"max_repair_rounds"`
	// RepairService defaults to the translation service.
	RepairService string `mapstructure:"repair_service"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	TargetLang  string   `mapstructure:"lang"`
	Fields      []string `mapstructure:"fields"`
	Service     string   `mapstructure:"service"`
	Model       string   `mapstructure:"model"`
	Temperature float64  `mapstructure:"temperature"`
	BatchSize   int      `mapstructure:"batch_size"`
	Format      string   `mapstructure:"format"`
	DataDir     string   `mapstructure:"data_dir"`
	ResultDir   string   `mapstructure:"result_dir"`

	Judge    JudgeConfig                         `mapstructure:"judge"`
	Cache    CacheConfig                         `mapstructure:"cache"`
	Log      LogConfig                           `mapstructure:"log"`
	Services map[string]translator.ServiceConfig `mapstructure:"services"`
}

// KnownServices lists every backend that can be configured under services.
var KnownServices = []string{
	translator.ServiceOpenAI,
	translator.ServiceOpenRouter,
	translator.ServiceOllama,
	translator.ServiceGemini,
	translator.ServiceGoogle,
}

// apiKeyEnv names the provider variables consulted when no key is
// configured explicitly.
var apiKeyEnv = map[string][]string{
	translator.ServiceOpenAI:     {"OPENAI_API_KEY"},
	translator.ServiceOpenRouter: {"OPENROUTER_API_KEY"},
	translator.ServiceGemini:     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	translator.ServiceGoogle:     {"GOOGLE_TRANSLATE_API_KEY"},
}

// SetDefaults registers every key with its default so that environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("lang", "")
	v.SetDefault("fields", []string{})
	v.SetDefault("service", translator.ServiceOpenAI)
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("batch_size", 10)
	v.SetDefault("format", "auto")
	v.SetDefault("data_dir", "data")
	v.SetDefault("result_dir", "result")

	v.SetDefault("judge.enabled", false)
	v.SetDefault("judge.service", translator.ServiceGemini)
	v.SetDefault("judge.model", "gemini-2.5-pro")
	v.SetDefault("judge.max_repair_rounds", 1)
	v.SetDefault("judge.repair_service", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.db", "./data/jsontran.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	for _, name := range KnownServices {
		prefix := "services." + name + "."
		for _, key := range []string{"api_key", "credentials", "base_url", "project_id", "referer", "title"} {
			v.SetDefault(prefix+key, "")
		}
		v.SetDefault(prefix+"timeout", "0s")
	}
	v.SetDefault("services.ollama.base_url", "http://localhost:11434")
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configFile, or jsontran.{yaml,toml,json} from the working
// directory when configFile is empty, then applies JSONTRAN_* environment
// variables and any flags already bound to v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("jsontran")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.fillAPIKeys()
	return &cfg, nil
}

func (c *Config) fillAPIKeys() {
	if c.Services == nil {
		c.Services = make(map[string]translator.ServiceConfig)
	}
	for name, vars := range apiKeyEnv {
		sc := c.Services[name]
		if sc.APIKey != "" {
			continue
		}
		for _, env := range vars {
			if key := os.Getenv(env); key != "" {
				sc.APIKey = key
				break
			}
		}
		c.Services[name] = sc
	}
}

// ServiceSettings returns the connection settings for name.
func (c *Config) ServiceSettings(name string) translator.ServiceConfig {
	return c.Services[name]
}

// RepairService is the backend that redoes rejected translations.
func (c *Config) RepairService() string {
	if c.Judge.RepairService != "" {
		return c.Judge.RepairService
	}
	return c.Service
}

// Validate reports every problem at once, before any file is touched.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.TargetLang) == "" {
		fail("target language is required")
	}
	if c.BatchSize < 1 {
		fail("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		fail("temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if _, err := recordio.ParseFormat(c.Format); err != nil {
		fail("%v", err)
	}
	if c.DataDir == "" || c.ResultDir == "" {
		fail("data and result directories are required")
	}

	var remote []string
	if !slices.Contains(KnownServices, c.Service) {
		fail("unknown service %q", c.Service)
	} else {
		remote = append(remote, c.Service)
	}

	if c.Judge.Enabled {
		if c.Judge.MaxRepairRounds < 0 {
			fail("max repair rounds must not be negative, got %d", c.Judge.MaxRepairRounds)
		}
		switch {
		case c.Judge.Service == JudgeLanguage:
		case slices.Contains(translator.CompleterServices, c.Judge.Service):
			remote = append(remote, c.Judge.Service)
		default:
			fail("unknown judge service %q", c.Judge.Service)
		}

		if c.Judge.MaxRepairRounds > 0 {
			repair := c.RepairService()
			switch {
			case repair == translator.ServiceGoogle:
				fail("repair service %q cannot take reviewer feedback; set judge.repair_service to an LLM backend", repair)
			case !slices.Contains(translator.CompleterServices, repair):
				fail("unknown repair service %q", repair)
			default:
				remote = append(remote, repair)
			}
		}
	}

	if c.Cache.Enabled && c.Cache.DBPath == "" {
		fail("cache database path is required when the cache is enabled")
	}

	slices.Sort(remote)
	for _, service := range slices.Compact(remote) {
		if needsAPIKey(service) && c.Services[service].APIKey == "" {
			fail("%s requires an API key (services.%s.api_key or %s)",
				service, service, strings.Join(apiKeyEnv[service], "/"))
		}
	}

	return errors.Join(errs...)
}

// needsAPIKey reports whether service cannot run without a key. Ollama is
// local and Google falls back to application default credentials.
func needsAPIKey(service string) bool {
	switch service {
	case translator.ServiceOpenAI, translator.ServiceOpenRouter, translator.ServiceGemini:
		return true
	}
	return false
}
