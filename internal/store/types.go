package store

import "time"

// #region rows
// RunRow is one indexed run.
type RunRow struct {
	RunID       string     `json:"run_id"`
	Benchmark   string     `json:"benchmark"`
	TaskID      int        `json:"task_id"`
	Seed        int64      `json:"seed"`
	Controller  string     `json:"controller"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Status      string     `json:"status,omitempty"` // "" while running
	Steps       int        `json:"steps"`
	TotalTokens int        `json:"total_tokens"`
	Response    string     `json:"response,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StepRow is the indexed projection of one step record. RecordJSON holds the full line.
type StepRow struct {
	RunID            string  `json:"run_id"`
	Step             int     `json:"step"`
	RegimeBefore     string  `json:"regime_before"`
	RegimeAfter      string  `json:"regime_after"`
	Dopamine         float64 `json:"dopamine"`
	Cortisol         float64 `json:"cortisol"`
	Energy           float64 `json:"energy"`
	ValidationStatus string  `json:"validation_status"`
	Repairs          int     `json:"repairs"`
	Tool             string  `json:"tool,omitempty"`
	PolicyBlocked    bool    `json:"policy_blocked"`
	Final            bool    `json:"final"`
	TotalTokens      int     `json:"total_tokens"`
	RecordJSON       string  `json:"-"`
}

// AttemptRow is one schema-guard attempt of a step.
type AttemptRow struct {
	RunID  string `json:"run_id"`
	Step   int    `json:"step"`
	Index  int    `json:"index"`
	Repair bool   `json:"repair"`
	Valid  bool   `json:"valid"`
	Kind   string `json:"kind"`
	Error  string `json:"error,omitempty"`
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Benchmark  string
	Controller string
	TaskID     *int
	Limit      int
}

// #endregion rows
