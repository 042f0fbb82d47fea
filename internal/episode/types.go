package episode

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/hormone-harness/internal/controller"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
	"github.com/danielpatrickdp/hormone-harness/internal/signals"
)

// #region run-context
// RunContext is fixed for one run.
type RunContext struct {
	RunID      string
	Benchmark  string
	TaskID     int
	Seed       int64
	Controller string // record.ControllerOff or record.ControllerOn
}

// NewRunContext assigns a fresh run id.
func NewRunContext(benchmark string, taskID int, seed int64, controller string) RunContext {
	return RunContext{
		RunID:      uuid.New().String(),
		Benchmark:  benchmark,
		TaskID:     taskID,
		Seed:       seed,
		Controller: controller,
	}
}

func (rc RunContext) Identity() record.Identity {
	return record.Identity{
		RunID:      rc.RunID,
		Benchmark:  rc.Benchmark,
		TaskID:     rc.TaskID,
		Seed:       rc.Seed,
		Controller: rc.Controller,
	}
}

// #endregion run-context

// #region options
// What to do when the schema guard gives up on a step.
const (
	OnExhaustedContinue = "continue" // record, count as a tool error, keep going
	OnExhaustedAbort    = "abort"    // record, end the episode without an answer
)

// Options bound one episode.
type Options struct {
	OutDir      string        `yaml:"out_dir"`
	Benchmark   string        `yaml:"benchmark"`
	MaxSteps    int           `yaml:"max_steps"`
	StepTimeout time.Duration `yaml:"step_timeout"` // model, repair and env calls of one step; 0 = none
	OnExhausted string        `yaml:"on_exhausted"`
}

func DefaultOptions() Options {
	return Options{
		OutDir:      "runs",
		Benchmark:   "toy",
		MaxSteps:    40,
		StepTimeout: 2 * time.Minute,
		OnExhausted: OnExhaustedContinue,
	}
}

// #endregion options

// #region deps
// Deps are the collaborators of a Runner. Everything here is shared by concurrent
// episodes, so only factories and immutable components are accepted.
type Deps struct {
	Controllers *controller.Factory
	Guard       *schema.Guard
	Signals     *signals.Producer
	Models      model.Factory
	Envs        env.Factory
	Sinks       []record.Sink
	Logger      *slog.Logger
}

// #endregion deps

// #region result
// Result is the outcome of one run.
type Result struct {
	Identity record.Identity `json:"identity"`
	Dir      string          `json:"dir"`
	Summary  record.Summary  `json:"summary"`
}

// Pair is the OFF and ON run of one task and seed.
type Pair struct {
	Off Result `json:"off"`
	On  Result `json:"on"`
}

// #endregion result
