package translator

import (
	"fmt"
	"log/slog"
)

// Service names accepted by NewCompleter.
const (
	ServiceOpenAI     = "openai"
	ServiceOpenRouter = "openrouter"
	ServiceOllama     = "ollama"
	ServiceGemini     = "gemini"
	ServiceGoogle     = "google"
)

// CompleterServices lists the services that can act as a Completer.
var CompleterServices = []string{ServiceOpenAI, ServiceOpenRouter, ServiceOllama, ServiceGemini}

// NewCompleter builds the LLM client for service.
func NewCompleter(service string, cfg ServiceConfig, logger *slog.Logger) (Completer, error) {
	switch service {
	case ServiceOpenAI:
		return NewOpenAICompleter(cfg, logger), nil
	case ServiceOpenRouter:
		return NewOpenRouterCompleter(cfg, logger), nil
	case ServiceOllama:
		return NewOllamaCompleter(cfg, logger), nil
	case ServiceGemini:
		return NewGeminiCompleter(cfg, logger), nil
	case ServiceGoogle:
		return nil, fmt.Errorf("%w: service %q cannot complete prompts", ErrInvalidInput, service)
	default:
		return nil, fmt.Errorf("%w: unknown service %q", ErrInvalidInput, service)
	}
}
