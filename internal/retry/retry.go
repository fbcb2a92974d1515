// Package retry runs an operation until it succeeds, a Policy gives up, or
// the context is done.
//
// A Policy decides, after each failed attempt, whether to try again and how
// long to wait first. Exponential and Suggested are the two wait regimes;
// Classified picks one of them per error.
package retry

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Policy decides what happens after a failed attempt. attempt is 1-based
// and counts the attempt that just failed.
type Policy interface {
	Next(attempt int, err error) (time.Duration, bool)
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(attempt int, err error) (time.Duration, bool)

func (f PolicyFunc) Next(attempt int, err error) (time.Duration, bool) {
	return f(attempt, err)
}

// Exponential waits Base·2^(attempt-1) clamped to [Min, Max] and stops
// once Attempts attempts have failed. Attempts ≤ 0 means a single attempt.
type Exponential struct {
	Base     time.Duration
	Min      time.Duration
	Max      time.Duration
	Attempts int
}

func (p Exponential) Next(attempt int, _ error) (time.Duration, bool) {
	if attempt >= max(p.Attempts, 1) {
		return 0, false
	}
	return p.Delay(attempt), true
}

// Delay returns the wait before the attempt that follows attempt.
func (p Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		if p.Max > 0 && delay > p.Max/2 {
			delay = p.Max
			break
		}
		delay *= 2
	}
	if delay < p.Min {
		delay = p.Min
	}
	if p.Max > 0 && delay > p.Max {
		delay = p.Max
	}
	return delay
}

// Suggested never gives up. It waits for the delay the failing service
// asked for, or Default when the error carries no hint.
type Suggested struct {
	Default time.Duration
}

func (p Suggested) Next(_ int, err error) (time.Duration, bool) {
	if d, ok := Hint(err); ok {
		return d, true
	}
	return p.Default, true
}

// Classified uses Transient for errors Classify accepts and Other for the
// rest. Attempt counts are shared between the two regimes.
type Classified struct {
	Classify  func(error) bool
	Transient Policy
	Other     Policy
}

func (p Classified) Next(attempt int, err error) (time.Duration, bool) {
	if p.Classify != nil && p.Classify(err) {
		return p.Transient.Next(attempt, err)
	}
	return p.Other.Next(attempt, err)
}

// Never stops after the first failure.
var Never Policy = PolicyFunc(func(int, error) (time.Duration, bool) { return 0, false })

// Hinter is implemented by errors that carry a service-suggested wait.
type Hinter interface {
	RetryAfter() time.Duration
}

var hintPattern = regexp.MustCompile(`(?i)retry[^\d]*(\d+(?:\.\d+)?)\s*s`)

// Hint extracts a suggested wait from err: first from a Hinter anywhere in
// the chain, then from text such as "Please retry in 17.5s".
func Hint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var h Hinter
	if errors.As(err, &h) {
		if d := h.RetryAfter(); d > 0 {
			return d, true
		}
	}
	m := hintPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// Option customizes Do.
type Option func(*runner)

// WithSleeper overrides how waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(r *runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithNotify registers a callback invoked before every wait.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *runner) {
		r.notify = fn
	}
}

type runner struct {
	sleep  func(context.Context, time.Duration) error
	notify func(int, error, time.Duration)
}

// Do calls fn until it returns nil or policy gives up. The error of the
// last attempt is returned unchanged. Context cancellation stops retrying
// and returns the context error.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error, opts ...Option) error {
	r := &runner{sleep: Sleep}
	for _, opt := range opts {
		opt(r)
	}
	if policy == nil {
		policy = Never
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait, again := policy.Next(attempt, err)
		if !again {
			return err
		}
		if r.notify != nil {
			r.notify(attempt, err, wait)
		}
		if serr := r.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
