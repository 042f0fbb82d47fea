package env

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

// #region toy
// Toy is a small deterministic web-like environment for demos and tests.
// Reads and finds make steady low-risk progress, navigation is faster but riskier,
// typing is a mutation and raises risk sharply. Very high risk blocks mutations.
// The task succeeds once progress reaches 1.
type Toy struct {
	started  bool
	taskID   int
	seed     int64
	step     int
	progress float64
	risk     float64
}

// NewToy returns an unstarted Toy; call Reset first.
func NewToy() *Toy {
	return &Toy{}
}

func rng(seed int64, taskID, step int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(taskID)*997+uint64(step)))
}

func (t *Toy) Reset(ctx context.Context, taskID int, seed int64) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, fault.New(fault.ClassCancelled, "env.reset", err)
	}
	*t = Toy{started: true, taskID: taskID, seed: seed}
	t.risk = rng(seed, taskID, 0).Float64() * 0.6
	return t.observe(), nil
}

func (t *Toy) Step(ctx context.Context, action Action) (Observation, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, Outcome{}, fault.New(fault.ClassCancelled, "env.step", err)
	}
	if !t.started {
		return Observation{}, Outcome{}, fault.New(fault.ClassEnvironment, "env.step", errors.New("step before reset"))
	}
	r := rng(t.seed, t.taskID, t.step+1)
	t.step++

	var out Outcome
	switch action.Tool {
	case "browser.read", "browser.find":
		t.progress += 0.35 + 0.10*r.Float64()
		t.risk = max(0, t.risk-0.05)
	case "browser.goto", "browser.click":
		t.progress += 0.20 + 0.10*r.Float64()
		t.risk = min(1, t.risk+0.05)
	case "browser.type":
		t.progress += 0.15
		t.risk = min(1, t.risk+0.12)
		out.RiskEvents = []string{"mutation_attempt"}
	case "browser.scroll":
		t.progress += 0.05
	default:
		out.ToolErrors = 1
		out.RiskEvents = []string{"unknown_tool"}
	}

	if t.risk > 0.92 && (action.Tool == "browser.type" || action.Tool == "browser.click") {
		out.PolicyBlocks = 1
		out.RiskEvents = append(out.RiskEvents, "policy_blocked")
	}

	out.Progress = min(1, t.progress)
	out.Success = t.progress >= 1
	out.Failed = out.ToolErrors > 0 || out.PolicyBlocks > 0
	return t.observe(), out, nil
}

func (t *Toy) observe() Observation {
	var warnings []string
	if t.risk > 0.7 {
		warnings = append(warnings, "spam_warning")
	}
	if t.risk > 0.85 {
		warnings = append(warnings, "policy_guardrail_near_limit")
	}
	return Observation{
		Goal: fmt.Sprintf("(toy task %d) Find the target information safely and efficiently.", t.taskID),
		Text: fmt.Sprintf("[ToyEnv] step=%d progress=%.2f risk=%.2f\n"+
			"Available tools: browser.read, browser.find, browser.goto, browser.click, browser.type, browser.scroll\n",
			t.step, t.progress, t.risk),
		Warnings: warnings,
	}
}

// #endregion toy
