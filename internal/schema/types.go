package schema

import (
	"context"
	"encoding/json"
	"fmt"
)

// #region kind
// Kind selects which schema a payload is validated against.
type Kind string

const (
	KindToolCall    Kind = "tool_call"
	KindFinalAnswer Kind = "final_answer"
)

// IntentField is the payload key that declares the intended kind.
const IntentField = "type"

// Kinds lists every schema kind.
func Kinds() []Kind {
	return []Kind{KindToolCall, KindFinalAnswer}
}

func (k Kind) IsValid() bool {
	return k == KindToolCall || k == KindFinalAnswer
}

// Title is the human name of the schema, used in repair prompts.
func (k Kind) Title() string {
	switch k {
	case KindToolCall:
		return "ToolCall"
	case KindFinalAnswer:
		return "FinalAnswer"
	case "":
		return KindToolCall.Title() + " or " + KindFinalAnswer.Title()
	}
	return string(k)
}

// #endregion kind

// #region config
// Config controls schema sources and the repair bound.
type Config struct {
	MaxRepairs      int    `yaml:"max_repairs"`
	ToolCallPath    string `yaml:"tool_call_path"`    // "" = embedded default
	FinalAnswerPath string `yaml:"final_answer_path"` // "" = embedded default
}

// DefaultConfig returns two repair attempts and the embedded schemas.
func DefaultConfig() Config {
	return Config{MaxRepairs: 2}
}

// #endregion config

// #region validation-error
// ValidationError describes the first schema violation of a payload.
type ValidationError struct {
	Kind    Kind
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
}

// #endregion validation-error

// #region result
// Status is the terminal state of one Enforce call.
type Status string

const (
	StatusValid     Status = "valid"
	StatusRepaired  Status = "repaired"
	StatusExhausted Status = "exhausted"
	StatusAborted   Status = "aborted"
)

// Attempt is one validation pass over a candidate text. Index 0 is the original output.
type Attempt struct {
	Index  int    `json:"index"`
	Repair bool   `json:"repair"`
	Raw    string `json:"raw"`
	Kind   Kind   `json:"kind,omitempty"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of Enforce. Payload is set only when Status is valid or repaired.
type Result struct {
	Status   Status
	Kind     Kind
	Payload  json.RawMessage
	Attempts []Attempt
	Err      error
}

// OK reports whether a validated payload is available.
func (r Result) OK() bool {
	return r.Status == StatusValid || r.Status == StatusRepaired
}

// Repairs returns the number of repair attempts made.
func (r Result) Repairs() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Repair {
			n++
		}
	}
	return n
}

// #endregion result

// #region repairer
// RepairRequest is handed to a Repairer after a failed validation.
type RepairRequest struct {
	Kind    Kind
	Prompt  string
	Error   string
	Raw     string
	Attempt int
}

// Repairer produces a corrected candidate text. Usually backed by a model call.
type Repairer interface {
	Repair(ctx context.Context, req RepairRequest) (string, error)
}

// RepairFunc adapts a function to Repairer.
type RepairFunc func(ctx context.Context, req RepairRequest) (string, error)

func (f RepairFunc) Repair(ctx context.Context, req RepairRequest) (string, error) {
	return f(ctx, req)
}

// #endregion repairer
