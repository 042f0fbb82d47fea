package replay

import (
	"fmt"

	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/controller"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
	"github.com/danielpatrickdp/hormone-harness/internal/signals"
)

// #region types
// Step is one outcome fed to the controller. Exactly one of Outcome and Raw is
// set; Raw goes through the signal producer first.
type Step struct {
	StepID  string
	Outcome *hormone.Outcome
	Raw     *env.Outcome
	Tokens  int
}

// ReplayResult is the controller state after consuming one step.
type ReplayResult struct {
	StepID       string
	Outcome      hormone.Outcome
	Before       hormone.Vector
	After        hormone.Vector
	RegimeBefore regime.Regime
	RegimeAfter  regime.Regime
	Conditions   []regime.Condition
	Bundle       control.Bundle
}

// Flipped reports whether the step changed the regime.
func (r ReplayResult) Flipped() bool {
	return r.RegimeBefore != r.RegimeAfter
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps  int
	Flips       int
	Regimes     map[regime.Regime]int // steps spent in each regime after the update
	FinalRegime regime.Regime
	FinalVector hormone.Vector
}

// #endregion types

// #region replay
// Replay starts an episode on ctrl and feeds it every step in order, without a
// model or an environment. Raw outcomes need a producer.
func Replay(ctrl controller.Controller, producer *signals.Producer, steps []Step) ([]ReplayResult, error) {
	ctrl.Reset()
	if _, err := ctrl.Observe(nil); err != nil {
		return nil, fmt.Errorf("start episode: %w", err)
	}

	results := make([]ReplayResult, 0, len(steps))
	for i, s := range steps {
		o, err := resolve(s, producer)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i, s.StepID, err)
		}
		tick, err := ctrl.Observe(&o)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): observe: %w", i, s.StepID, err)
		}
		results = append(results, ReplayResult{
			StepID:       s.StepID,
			Outcome:      o,
			Before:       tick.Before,
			After:        tick.After,
			RegimeBefore: tick.RegimeBefore,
			RegimeAfter:  tick.RegimeAfter,
			Conditions:   tick.Conditions,
			Bundle:       tick.Bundle,
		})
	}
	return results, nil
}

func resolve(s Step, producer *signals.Producer) (hormone.Outcome, error) {
	switch {
	case s.Outcome != nil:
		return *s.Outcome, nil
	case s.Raw != nil:
		if producer == nil {
			return hormone.Outcome{}, fmt.Errorf("raw outcome without a signal producer")
		}
		return producer.Produce(signals.ProduceInput{
			Success:      s.Raw.Success,
			Failed:       s.Raw.Failed,
			Progress:     s.Raw.Progress,
			RiskEvents:   len(s.Raw.RiskEvents),
			ToolErrors:   s.Raw.ToolErrors,
			PolicyBlocks: s.Raw.PolicyBlocks,
			Tokens:       s.Tokens,
		}), nil
	}
	return hormone.Outcome{}, fmt.Errorf("step has no outcome")
}

// FromRecords turns a recorded run back into replay steps. Record t carries the
// outcome of action t-1, so the first record contributes nothing.
func FromRecords(recs []record.StepRecord) []Step {
	steps := make([]Step, 0, len(recs))
	for _, rec := range recs {
		if rec.Outcome == nil {
			continue
		}
		o := *rec.Outcome
		steps = append(steps, Step{StepID: fmt.Sprintf("step_%d", rec.Step), Outcome: &o})
	}
	return steps
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalSteps: len(results),
		Regimes:    make(map[regime.Regime]int),
	}
	for _, r := range results {
		if r.Flipped() {
			s.Flips++
		}
		s.Regimes[r.RegimeAfter]++
	}
	if n := len(results); n > 0 {
		s.FinalRegime = results[n-1].RegimeAfter
		s.FinalVector = results[n-1].After
	}
	return s
}

// #endregion replay
