package hormone

import (
	"testing"

	"pgregory.net/rapid"
)

func outcomeGen() *rapid.Generator[Outcome] {
	return rapid.Custom(func(t *rapid.T) Outcome {
		return Outcome{
			Success:  rapid.Bool().Draw(t, "success"),
			Failed:   rapid.Bool().Draw(t, "failed"),
			Progress: rapid.Float64Range(-2, 2).Draw(t, "progress"),
			Risk:     rapid.Float64Range(-2, 2).Draw(t, "risk"),
			Cost:     rapid.Float64Range(-2, 2).Draw(t, "cost"),
		}
	})
}

// Property: clamping invariant.
// For any sequence of outcomes, every axis stays within its declared bounds.
func TestPropertyAxesStayInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.RiskGain = rapid.Float64Range(0, 3).Draw(rt, "risk_gain")
		cfg.RewardGain = rapid.Float64Range(0, 3).Draw(rt, "reward_gain")
		cfg.FailureGain = rapid.Float64Range(0, 3).Draw(rt, "failure_gain")
		cfg.ReliefGain = rapid.Float64Range(0, 3).Draw(rt, "relief_gain")
		cfg.SetbackGain = rapid.Float64Range(0, 3).Draw(rt, "setback_gain")
		cfg.CostGain = rapid.Float64Range(0, 3).Draw(rt, "cost_gain")

		s := NewState(cfg)
		outcomes := rapid.SliceOfN(outcomeGen(), 1, 60).Draw(rt, "outcomes")
		for i, o := range outcomes {
			v := s.Update(o)
			if !cfg.InBounds(v) {
				rt.Fatalf("step %d: vector out of bounds: %+v", i, v)
			}
		}
	})
}

// Property: determinism.
// Identical outcome sequences from the identical initial state yield identical trajectories.
func TestPropertyDeterministicTrajectory(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		outcomes := rapid.SliceOfN(outcomeGen(), 1, 40).Draw(rt, "outcomes")

		a, b := NewState(cfg), NewState(cfg)
		for i, o := range outcomes {
			if va, vb := a.Update(o), b.Update(o); va != vb {
				rt.Fatalf("step %d diverged: %+v vs %+v", i, va, vb)
			}
		}
	})
}
