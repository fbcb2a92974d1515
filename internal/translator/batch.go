package translator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valpere/jsontran/internal/jsonvalue"
	"github.com/valpere/jsontran/internal/postprocess"
	"github.com/valpere/jsontran/internal/retry"
)

// DefaultBatchPolicy retries retryable failures with exponential backoff
// (1s base, clamped to 2s..30s) for at most four attempts in total.
func DefaultBatchPolicy() retry.Policy {
	return retry.Classified{
		Classify: IsRetryable,
		Transient: retry.Exponential{
			Base:     time.Second,
			Min:      2 * time.Second,
			Max:      30 * time.Second,
			Attempts: 4,
		},
		Other: retry.Never,
	}
}

// LLMTranslator translates batches through any Completer by asking for a
// JSON array of translations.
type LLMTranslator struct {
	completer Completer
	policy    retry.Policy
	sleep     func(context.Context, time.Duration) error
	logger    *slog.Logger
}

// Option customizes an LLMTranslator.
type Option func(*LLMTranslator)

// WithRetryPolicy overrides DefaultBatchPolicy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(t *LLMTranslator) {
		if p != nil {
			t.policy = p
		}
	}
}

// WithSleeper overrides how retry waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(t *LLMTranslator) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) Option {
	return func(t *LLMTranslator) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewLLMTranslator(c Completer, opts ...Option) *LLMTranslator {
	t := &LLMTranslator{
		completer: c,
		policy:    DefaultBatchPolicy(),
		sleep:     retry.Sleep,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "translator", "service", c.Name())
	return t
}

func (t *LLMTranslator) Name() string {
	return t.completer.Name()
}

// TranslateBatch sends all texts in one request. An empty batch returns
// immediately without contacting the model. The last error is returned
// once the retry policy gives up.
func (t *LLMTranslator) TranslateBatch(ctx context.Context, req BatchRequest) ([]string, error) {
	if len(req.Texts) == 0 {
		return []string{}, nil
	}

	creq := CompletionRequest{
		System:      BatchSystemPrompt,
		User:        BuildBatchPrompt(req.TargetLang, req.Texts, req.Glossary),
		Model:       req.Model,
		Temperature: req.Temperature,
		JSON:        true,
	}

	var out []string
	err := retry.Do(ctx, t.policy, func(ctx context.Context) error {
		raw, err := t.completer.Complete(ctx, creq)
		if err != nil {
			return err
		}
		parsed, err := ParseStringArray(raw, len(req.Texts))
		if err != nil {
			return err
		}
		out = parsed
		return nil
	},
		retry.WithSleeper(t.sleep),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			t.logger.Warn("batch failed, retrying", "attempt", attempt, "wait", wait, "size", len(req.Texts), "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseStringArray decodes a model reply that should hold a JSON array of
// exactly want elements. Fences and surrounding prose are tolerated.
// Elements are coerced to strings: numbers keep their literal, booleans
// become "true"/"false", null becomes "" and nested values are rendered as
// compact JSON.
func ParseStringArray(raw string, want int) ([]string, error) {
	payload := postprocess.JSON(raw, '[')
	v, err := jsonvalue.Parse([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: non-JSON output: %v: %s", ErrResponseInvalid, err, truncate(payload, 300))
	}
	if v.Kind() != jsonvalue.Array {
		return nil, fmt.Errorf("%w: expected a JSON array, got %s", ErrResponseInvalid, v.Kind())
	}
	if v.Len() != want {
		return nil, &ShapeError{Want: want, Got: v.Len()}
	}

	out := make([]string, 0, want)
	for _, item := range v.Items() {
		s, err := coerceString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func coerceString(v *jsonvalue.Value) (string, error) {
	switch v.Kind() {
	case jsonvalue.String:
		s, _ := v.AsString()
		return s, nil
	case jsonvalue.Null:
		return "", nil
	case jsonvalue.Number:
		n, _ := v.AsNumber()
		return n.String(), nil
	case jsonvalue.Bool:
		b, _ := v.AsBool()
		if b {
			return "true", nil
		}
		return "false", nil
	default:
		data, err := jsonvalue.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
		}
		return string(data), nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
