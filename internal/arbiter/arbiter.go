// Package arbiter reviews translations and returns one verdict per pair.
package arbiter

import (
	"context"
	"time"

	"github.com/valpere/jsontran/internal/retry"
	"github.com/valpere/jsontran/internal/translator"
)

// Pair is one source text and its candidate translation.
type Pair struct {
	Original    string `json:"original"`
	Translation string `json:"translation"`
}

// Verdict is the judge's decision on one pair. Feedback explains a
// rejection and is empty when OK is true.
type Verdict struct {
	OK       bool   `json:"ok"`
	Feedback string `json:"feedback,omitempty"`
}

type ReviewRequest struct {
	Pairs      []Pair
	TargetLang string
	Model      string
}

// Judge reviews a batch of pairs. The returned slice has exactly one
// verdict per pair, in order.
type Judge interface {
	Name() string
	Review(ctx context.Context, req ReviewRequest) ([]Verdict, error)
}

// DefaultPolicy waits as long as the service asks on quota and overload
// answers, without limit. Other retryable failures back off exponentially
// between 2s and 10s and give up after three attempts.
func DefaultPolicy() retry.Policy {
	return retry.Classified{
		Classify:  translator.IsRateLimited,
		Transient: retry.Suggested{Default: 30 * time.Second},
		Other: retry.Classified{
			Classify: translator.IsRetryable,
			Transient: retry.Exponential{
				Base:     time.Second,
				Min:      2 * time.Second,
				Max:      10 * time.Second,
				Attempts: 3,
			},
			Other: retry.Never,
		},
	}
}
