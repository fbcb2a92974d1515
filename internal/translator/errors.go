package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrResponseInvalid marks a reply that could not be used: not JSON,
	// not an array, wrong length, or empty.
	ErrResponseInvalid = errors.New("invalid model response")
	// ErrRateLimited marks quota and overload answers (HTTP 429 and 503).
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidInput marks requests that can never succeed as sent.
	ErrInvalidInput = errors.New("invalid input")
)

// StatusError is a non-2xx answer from a backend.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	// Delay is the wait the service asked for, zero when it gave none.
	Delay time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("%s: http %d: %s", e.Service, e.StatusCode, body)
}

// RetryAfter reports the service-suggested wait.
func (e *StatusError) RetryAfter() time.Duration { return e.Delay }

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.rateLimited()
}

func (e *StatusError) rateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// Transient reports whether the same request may succeed later.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// ShapeError is returned when a reply array does not have one element per
// input.
type ShapeError struct {
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("count mismatch: sent %d, received %d", e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrResponseInvalid }

// IsRateLimited reports whether err is a quota or overload answer.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable reports whether retrying err makes sense. Client errors such
// as 401 or 404 and invalid input are final; status codes that signal a
// temporary condition, malformed replies and network failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidInput) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return true
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// parseRetryInfo reads google.rpc.RetryInfo.retryDelay ("17s", "1.5s")
// from a Google API error body.
func parseRetryInfo(body []byte) time.Duration {
	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return 0
	}
	for _, detail := range errResp.Error.Details {
		if !strings.Contains(detail.Type, "RetryInfo") || detail.RetryDelay == "" {
			continue
		}
		if d, err := time.ParseDuration(detail.RetryDelay); err == nil && d > 0 {
			return d
		}
	}
	return 0
}
