package env

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

// #region scripted
// Scripted replays a fixed outcome sequence regardless of the action taken.
// Once the script runs out every further step yields a zero outcome.
type Scripted struct {
	outcomes []Outcome
	taskID   int
	next     int
}

// NewScripted copies outcomes so the caller's slice can be shared across episodes.
func NewScripted(outcomes []Outcome) *Scripted {
	own := make([]Outcome, len(outcomes))
	copy(own, outcomes)
	return &Scripted{outcomes: own}
}

func (s *Scripted) Reset(ctx context.Context, taskID int, _ int64) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, fault.New(fault.ClassCancelled, "env.reset", err)
	}
	s.taskID = taskID
	s.next = 0
	return s.observe(), nil
}

func (s *Scripted) Step(ctx context.Context, _ Action) (Observation, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, Outcome{}, fault.New(fault.ClassCancelled, "env.step", err)
	}
	var out Outcome
	if s.next < len(s.outcomes) {
		out = s.outcomes[s.next]
	}
	s.next++
	return s.observe(), out, nil
}

func (s *Scripted) observe() Observation {
	return Observation{
		Goal: fmt.Sprintf("(scripted task %d)", s.taskID),
		Text: fmt.Sprintf("[Scripted] step=%d/%d\n", s.next, len(s.outcomes)),
	}
}

// #endregion scripted
