package record

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
)

// #region identity
// Controller states of a run.
const (
	ControllerOff = "off"
	ControllerOn  = "on"
)

// Identity names one run. It is stamped on every record of that run.
type Identity struct {
	RunID      string `json:"run_id"`
	Benchmark  string `json:"benchmark"`
	TaskID     int    `json:"task_id"`
	Seed       int64  `json:"seed"`
	Controller string `json:"controller"`
}

// #endregion identity

// #region step-record
// Validation is the schema-guard verdict of one step.
type Validation struct {
	Status   schema.Status    `json:"status"`
	Repairs  int              `json:"repairs"`
	Attempts []schema.Attempt `json:"attempts"`
	Error    string           `json:"error"`
}

// StepRecord is the full, immutable log line of one agent step. OFF and ON runs
// share this exact shape; OFF runs carry the baseline regime and a constant vector.
type StepRecord struct {
	Identity
	Step int       `json:"step"`
	Time time.Time `json:"ts"`

	HormonesBefore hormone.Vector `json:"hormones_before"`
	HormonesAfter  hormone.Vector `json:"hormones_after"`
	RegimeBefore   regime.Regime  `json:"regime_before"`
	RegimeAfter    regime.Regime  `json:"regime_after"`
	Controls       control.Bundle `json:"controls"`

	Outcome    *hormone.Outcome `json:"outcome"`     // nil on the first step
	RawOutcome *env.Outcome     `json:"raw_outcome"` // environment verdict behind Outcome

	Intent     schema.Kind     `json:"intent"`
	RawOutput  string          `json:"raw_output"`
	Payload    json.RawMessage `json:"payload"` // null unless validated
	Validation Validation      `json:"validation"`

	Action        *env.Action `json:"action"` // executed tool call, nil if none
	PolicyBlocked bool        `json:"policy_blocked"`
	Final         bool        `json:"final"`
	Usage         model.Usage `json:"usage"`
}

// #endregion step-record

// #region summary
// Run end states.
const (
	StatusCompleted = "completed" // final answer accepted
	StatusNoAnswer  = "no_answer" // step budget ran out
	StatusAborted   = "aborted"   // stopped by the on_exhausted policy
	StatusCancelled = "cancelled"
	StatusFailed    = "failed" // environment or model error
)

// Summary closes a run.
type Summary struct {
	Status      string          `json:"status"`
	Steps       int             `json:"steps"`
	TotalTokens int             `json:"total_tokens"`
	Response    json.RawMessage `json:"response"`
	Error       string          `json:"error,omitempty"`
}

// #endregion summary

// #region sinks
// Sink receives every record after it reached steps.jsonl.
type Sink interface {
	WriteStep(ctx context.Context, rec StepRecord) error
}

// RunSink is a Sink that also tracks the run lifecycle.
type RunSink interface {
	Sink
	BeginRun(ctx context.Context, id Identity) error
	FinishRun(ctx context.Context, id Identity, summary Summary) error
}

// #endregion sinks
