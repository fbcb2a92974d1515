// Package refiner redoes a single rejected translation using the reviewer's
// feedback.
package refiner

import (
	"context"
	"log/slog"
	"time"

	"github.com/valpere/jsontran/internal/postprocess"
	"github.com/valpere/jsontran/internal/retry"
	"github.com/valpere/jsontran/internal/translator"
)

// Request carries everything a repair needs. Previous is the rejected
// translation and Feedback the reason it was rejected.
type Request struct {
	Original    string
	Previous    string
	Feedback    string
	TargetLang  string
	Model       string
	Temperature *float64
	Glossary    map[string]string
}

// Refiner produces an improved translation of one text.
type Refiner interface {
	Refine(ctx context.Context, req Request) (string, error)
}

// DefaultPolicy retries retryable failures three times in total with
// exponential backoff between 2s and 30s.
func DefaultPolicy() retry.Policy {
	return retry.Classified{
		Classify: translator.IsRetryable,
		Transient: retry.Exponential{
			Base:     time.Second,
			Min:      2 * time.Second,
			Max:      30 * time.Second,
			Attempts: 3,
		},
		Other: retry.Never,
	}
}

// LLMRefiner asks a model for a corrected translation.
type LLMRefiner struct {
	completer translator.Completer
	policy    retry.Policy
	sleep     func(context.Context, time.Duration) error
	logger    *slog.Logger
}

type Option func(*LLMRefiner)

func WithRetryPolicy(p retry.Policy) Option {
	return func(r *LLMRefiner) {
		if p != nil {
			r.policy = p
		}
	}
}

func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(r *LLMRefiner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *LLMRefiner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewLLMRefiner(c translator.Completer, opts ...Option) *LLMRefiner {
	r := &LLMRefiner{
		completer: c,
		policy:    DefaultPolicy(),
		sleep:     retry.Sleep,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "refiner", "service", c.Name())
	return r
}

// Refine returns the cleaned model answer. An answer that is empty after
// cleanup keeps the previous translation.
func (r *LLMRefiner) Refine(ctx context.Context, req Request) (string, error) {
	creq := translator.CompletionRequest{
		System:      translator.RepairSystemPrompt,
		User:        translator.BuildRepairPrompt(req.Original, req.Previous, req.Feedback, req.TargetLang, req.Glossary),
		Model:       req.Model,
		Temperature: req.Temperature,
	}

	var answer string
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		raw, err := r.completer.Complete(ctx, creq)
		if err != nil {
			return err
		}
		answer = postprocess.Answer(raw, req.Original)
		return nil
	},
		retry.WithSleeper(r.sleep),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			r.logger.Warn("repair failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}

	if answer == "" {
		r.logger.Debug("empty repair answer, keeping previous translation")
		return req.Previous, nil
	}
	return answer, nil
}
