package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
)

// ChatCompleter talks to an OpenAI-compatible /chat/completions endpoint.
// It serves both the "openai" and "openrouter" services.
//
// Some models reject any explicit temperature. When a request fails with
// HTTP 400 naming the temperature parameter, the request is sent again
// once without it and the model is remembered so later requests skip the
// parameter from the start.
type ChatCompleter struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	referer string
	title   string
	client  *http.Client
	logger  *slog.Logger

	mu          sync.Mutex
	noTempModel map[string]bool
}

// NewOpenAICompleter returns a completer for the OpenAI API.
func NewOpenAICompleter(cfg ServiceConfig, logger *slog.Logger) *ChatCompleter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	return newChatCompleter("openai", cfg, logger)
}

// NewOpenRouterCompleter returns a completer for OpenRouter. Referer and
// Title are sent as the attribution headers OpenRouter asks for.
func NewOpenRouterCompleter(cfg ServiceConfig, logger *slog.Logger) *ChatCompleter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterBaseURL
	}
	if cfg.Title == "" {
		cfg.Title = "jsontran"
	}
	return newChatCompleter("openrouter", cfg, logger)
}

func newChatCompleter(name string, cfg ServiceConfig, logger *slog.Logger) *ChatCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &ChatCompleter{
		name:        name,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       model,
		referer:     cfg.Referer,
		title:       cfg.Title,
		client:      newHTTPClient(cfg.Timeout),
		logger:      logger.With("component", name),
		noTempModel: make(map[string]bool),
	}
}

func (c *ChatCompleter) Name() string {
	return c.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest carries no response_format: JSON object mode forbids the
// top-level arrays that batch and review replies are.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ChatCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%s: %w: API key required", c.name, ErrInvalidInput)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	temp := req.Temperature
	if c.skipsTemperature(model) {
		temp = nil
	}

	content, err := c.send(ctx, req, model, temp)
	if temp != nil && rejectsTemperature(err) {
		c.logger.Info("model rejected temperature, retrying without it", "model", model)
		c.markNoTemperature(model)
		content, err = c.send(ctx, req, model, nil)
	}
	return content, err
}

func (c *ChatCompleter) send(ctx context.Context, req CompletionRequest, model string, temp *float64) (string, error) {
	payload := chatRequest{Model: model, Temperature: temp}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.User})

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"HTTP-Referer":  c.referer,
		"X-Title":       c.title,
	}

	var resp chatResponse
	if err := postJSON(ctx, c.client, c.name, c.baseURL+"/chat/completions", headers, payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%s: api error: %w: %s", c.name, ErrResponseInvalid, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: empty choices", c.name, ErrResponseInvalid)
	}

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s: %w: empty content (finish_reason=%q, refusal=%q)",
			c.name, ErrResponseInvalid, choice.FinishReason, choice.Message.Refusal)
	}
	return content, nil
}

func (c *ChatCompleter) skipsTemperature(model string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noTempModel[model]
}

func (c *ChatCompleter) markNoTemperature(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noTempModel[model] = true
}

func rejectsTemperature(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(se.Body), "temperature")
}
