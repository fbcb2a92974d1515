package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valpere/jsontran/internal/jsonvalue"
	"github.com/valpere/jsontran/internal/postprocess"
	"github.com/valpere/jsontran/internal/retry"
	"github.com/valpere/jsontran/internal/translator"
)

// SystemPrompt tells the judge what to check and how to answer.
const SystemPrompt = `You are a strict translation quality reviewer.

You receive translation pairs, each an original English text and its translation, plus the target language.

Check every pair for:
1. Grammar: is the translation grammatically correct in the target language?
2. Naturalness: does it read like fluent text written by a native speaker? Flag stiff, awkward or word-for-word renderings.
3. Preserved terms: file names and extensions, folder names used as proper nouns (only the generic word for folder or directory may be translated), technical abbreviations (CWD, CLI, API), shell commands and flags, function, class, API and variable names, URLs, email addresses and domain names must appear exactly as in the source.

Reply with ONLY a JSON array, one object per pair, in the same order:
[
  {"ok": true},
  {"ok": false, "feedback": "What is wrong and how to fix it."}
]

Feedback explains the problem and gives guidance ("the tone is too formal", "X is unnatural here, consider Y", "do not translate the variable name Z"). Never include a complete rewritten sentence.
Output nothing outside the JSON array.`

// LLMJudge asks a model to review pairs.
type LLMJudge struct {
	completer translator.Completer
	policy    retry.Policy
	sleep     func(context.Context, time.Duration) error
	logger    *slog.Logger
}

// Option customizes an LLMJudge.
type Option func(*LLMJudge)

func WithRetryPolicy(p retry.Policy) Option {
	return func(j *LLMJudge) {
		if p != nil {
			j.policy = p
		}
	}
}

// WithSleeper overrides how retry waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(j *LLMJudge) {
		if sleep != nil {
			j.sleep = sleep
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(j *LLMJudge) {
		if l != nil {
			j.logger = l
		}
	}
}

func NewLLMJudge(c translator.Completer, opts ...Option) *LLMJudge {
	j := &LLMJudge{
		completer: c,
		policy:    DefaultPolicy(),
		sleep:     retry.Sleep,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With("component", "judge", "service", c.Name())
	return j
}

func (j *LLMJudge) Name() string {
	return j.completer.Name()
}

func (j *LLMJudge) Review(ctx context.Context, req ReviewRequest) ([]Verdict, error) {
	if len(req.Pairs) == 0 {
		return []Verdict{}, nil
	}

	prompt, err := buildReviewPrompt(req)
	if err != nil {
		return nil, err
	}
	creq := translator.CompletionRequest{
		System: SystemPrompt,
		User:   prompt,
		Model:  req.Model,
		JSON:   true,
	}

	var verdicts []Verdict
	err = retry.Do(ctx, j.policy, func(ctx context.Context) error {
		raw, err := j.completer.Complete(ctx, creq)
		if err != nil {
			return err
		}
		parsed, err := ParseVerdicts(raw, len(req.Pairs))
		if err != nil {
			return err
		}
		verdicts = parsed
		return nil
	},
		retry.WithSleeper(j.sleep),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			if translator.IsRateLimited(err) {
				j.logger.Warn("judge unavailable, waiting", "attempt", attempt, "wait", wait)
				return
			}
			j.logger.Warn("review failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func buildReviewPrompt(req ReviewRequest) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(req.Pairs); err != nil {
		return "", fmt.Errorf("encode pairs: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Target language: %s\n\n", req.TargetLang)
	fmt.Fprintf(&sb, "Translation pairs to review:\n%s\n", strings.TrimRight(buf.String(), "\n"))
	sb.WriteString("Return only the JSON array.")
	return sb.String(), nil
}

// ParseVerdicts decodes a judge reply holding a JSON array of exactly want
// verdicts. An element that is not an object or has no boolean "ok" turns
// into a rejection whose feedback quotes the element.
func ParseVerdicts(raw string, want int) ([]Verdict, error) {
	payload := postprocess.JSON(raw, '[')
	v, err := jsonvalue.Parse([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: judge returned non-JSON output: %v", translator.ErrResponseInvalid, err)
	}
	if v.Kind() != jsonvalue.Array {
		return nil, fmt.Errorf("%w: expected a JSON array from judge, got %s", translator.ErrResponseInvalid, v.Kind())
	}
	if v.Len() != want {
		return nil, &translator.ShapeError{Want: want, Got: v.Len()}
	}

	out := make([]Verdict, 0, want)
	for _, item := range v.Items() {
		out = append(out, normalizeVerdict(item))
	}
	return out, nil
}

func normalizeVerdict(item *jsonvalue.Value) Verdict {
	okVal, found := item.Get("ok")
	ok, isBool := okVal.AsBool()
	if !found || !isBool {
		raw, _ := jsonvalue.Marshal(item)
		return Verdict{OK: false, Feedback: "malformed verdict: " + string(raw)}
	}
	if ok {
		return Verdict{OK: true}
	}
	fb, _ := item.Get("feedback")
	feedback, _ := fb.AsString()
	return Verdict{OK: false, Feedback: strings.TrimSpace(feedback)}
}
