package orchestrator

import (
	"context"
	"fmt"

	"github.com/valpere/jsontran/internal/arbiter"
	"github.com/valpere/jsontran/internal/refiner"
)

// review judges one translated batch and repairs rejected pairs for up to
// MaxRepairRounds rounds. Repaired pairs are judged again only when another
// round follows; after the last round the latest translation stands.
func (o *Orchestrator) review(ctx context.Context, originals, translations []string, stats *Stats) ([]string, error) {
	current := make([]string, len(translations))
	copy(current, translations)

	pending := make([]int, len(originals))
	for i := range pending {
		pending[i] = i
	}

	for round := 1; ; round++ {
		pairs := make([]arbiter.Pair, len(pending))
		for i, idx := range pending {
			pairs[i] = arbiter.Pair{Original: originals[idx], Translation: current[idx]}
		}

		verdicts, err := o.judge.Review(ctx, arbiter.ReviewRequest{
			Pairs:      pairs,
			TargetLang: o.config.TargetLang,
			Model:      o.config.JudgeModel,
		})
		if err != nil {
			return nil, err
		}
		if len(verdicts) != len(pairs) {
			return nil, fmt.Errorf("judge returned %d verdicts for %d pairs", len(verdicts), len(pairs))
		}

		var rejected []int
		feedback := make(map[int]string)
		for i, v := range verdicts {
			if v.OK {
				continue
			}
			idx := pending[i]
			rejected = append(rejected, idx)
			feedback[idx] = v.Feedback
			o.logger.Info("translation rejected", "round", round, "original", originals[idx], "feedback", v.Feedback)
		}
		stats.Rejected += len(rejected)

		if len(rejected) == 0 || o.refiner == nil || round > o.config.MaxRepairRounds {
			break
		}

		for _, idx := range rejected {
			fixed, err := o.refiner.Refine(ctx, refiner.Request{
				Original:    originals[idx],
				Previous:    current[idx],
				Feedback:    feedback[idx],
				TargetLang:  o.config.TargetLang,
				Model:       o.config.RepairModel,
				Temperature: o.config.Temperature,
				Glossary:    o.config.Glossary,
			})
			if err != nil {
				return nil, fmt.Errorf("repair: %w", err)
			}
			o.logger.Debug("translation repaired", "round", round, "before", current[idx], "after", fixed)
			current[idx] = fixed
			stats.Repaired++
		}

		if round == o.config.MaxRepairRounds {
			break
		}
		pending = rejected
	}
	return current, nil
}
