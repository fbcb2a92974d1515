package translator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "qwen2.5:7b"
)

// OllamaCompleter talks to a local Ollama server through /api/generate.
type OllamaCompleter struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewOllamaCompleter(cfg ServiceConfig, logger *slog.Logger) *OllamaCompleter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaCompleter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  newHTTPClient(cfg.Timeout),
		logger:  logger.With("component", "ollama"),
	}
}

func (s *OllamaCompleter) Name() string {
	return "ollama"
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

func (s *OllamaCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = s.model
	}

	payload := ollamaRequest{
		Model:  model,
		Prompt: req.User,
		System: req.System,
		Stream: false,
	}
	if req.JSON {
		payload.Format = "json"
	}
	if req.Temperature != nil {
		payload.Options = &ollamaOptions{Temperature: req.Temperature}
	}

	var resp struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := postJSON(ctx, s.client, s.Name(), s.baseURL+"/api/generate", nil, payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %w: %s", ErrResponseInvalid, resp.Error)
	}

	content := strings.TrimSpace(resp.Response)
	if content == "" {
		return "", fmt.Errorf("ollama: %w: empty response", ErrResponseInvalid)
	}
	s.logger.Debug("completion received", "model", model, "chars", len(content))
	return content, nil
}

// IsAvailable checks that the server answers on /api/tags.
func (s *OllamaCompleter) IsAvailable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not available: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}
