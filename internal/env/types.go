package env

import "context"

// #region types
// Observation is what the agent sees before choosing its next action.
type Observation struct {
	Goal     string   `json:"goal"`
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
}

// Action is one tool invocation.
type Action struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Outcome is the environment's verdict on the last action.
type Outcome struct {
	Success      bool     `json:"success"`
	Failed       bool     `json:"failed"`
	Progress     float64  `json:"progress"`
	RiskEvents   []string `json:"risk_events,omitempty"`
	ToolErrors   int      `json:"tool_errors"`
	PolicyBlocks int      `json:"policy_blocks"`
}

// #endregion types

// #region environment
// Environment is the task world an episode runs against. Implementations are
// owned by one episode and need not be safe for concurrent use.
type Environment interface {
	Reset(ctx context.Context, taskID int, seed int64) (Observation, error)
	Step(ctx context.Context, action Action) (Observation, Outcome, error)
}

// Factory builds a fresh Environment per episode.
type Factory func() Environment

// Tools lists the browser tools the reference environments understand.
func Tools() []string {
	return []string{"browser.read", "browser.find", "browser.goto", "browser.click", "browser.type", "browser.scroll"}
}

// #endregion environment
