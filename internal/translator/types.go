package translator

import (
	"context"
	"time"
)

// ServiceConfig holds the connection settings of one backend.
type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
	Referer     string        `mapstructure:"referer" json:"referer"`
	Title       string        `mapstructure:"title" json:"title"`
}

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	System string
	User   string
	Model  string
	// Temperature is omitted from the request when nil.
	Temperature *float64
	// JSON asks the backend to constrain its reply to JSON when it can.
	JSON bool
}

// Completer is a chat-style model endpoint. It is shared by the batch
// translator, the judge and the refiner.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// BatchRequest asks for one translation per text, in order.
type BatchRequest struct {
	Texts       []string
	TargetLang  string
	Model       string
	Temperature *float64
	// Glossary maps source terms to the translation they must use.
	Glossary map[string]string
}

// BatchTranslator translates an ordered list of texts. The returned slice
// has exactly len(req.Texts) elements.
type BatchTranslator interface {
	Name() string
	TranslateBatch(ctx context.Context, req BatchRequest) ([]string, error)
}

// Float returns a pointer to v, for optional temperature fields.
func Float(v float64) *float64 { return &v }
