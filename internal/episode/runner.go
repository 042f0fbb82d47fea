package episode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/controller"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
	"github.com/danielpatrickdp/hormone-harness/internal/signals"
)

// Repair calls are kept cool and short regardless of the active regime.
const (
	repairTemperature = 0.3
	repairMaxTokens   = 400
)

// Risk events the runner raises itself.
const (
	eventToolNotAllowed = "tool_not_allowed"
	eventToolExecution  = "tool_execution_error"
	eventInvalidOutput  = "invalid_output"
)

// #region runner
// Runner executes episodes. It is safe for concurrent use: every Run builds its own
// controller, model, environment and recorder.
type Runner struct {
	opts   Options
	deps   Deps
	logger *slog.Logger
}

// NewRunner checks options and collaborators once.
func NewRunner(opts Options, deps Deps) (*Runner, error) {
	switch {
	case deps.Controllers == nil:
		return nil, fault.Configf("episode", "controller factory is required")
	case deps.Guard == nil:
		return nil, fault.Configf("episode", "schema guard is required")
	case deps.Signals == nil:
		return nil, fault.Configf("episode", "signal producer is required")
	case deps.Models == nil:
		return nil, fault.Configf("episode", "model factory is required")
	case deps.Envs == nil:
		return nil, fault.Configf("episode", "environment factory is required")
	}
	if opts.MaxSteps < 1 {
		return nil, fault.Configf("episode", "max_steps must be positive, got %d", opts.MaxSteps)
	}
	if opts.StepTimeout < 0 {
		return nil, fault.Configf("episode", "step_timeout must not be negative, got %s", opts.StepTimeout)
	}
	if opts.OnExhausted != OnExhaustedContinue && opts.OnExhausted != OnExhaustedAbort {
		return nil, fault.Configf("episode", "on_exhausted must be %q or %q, got %q",
			OnExhaustedContinue, OnExhaustedAbort, opts.OnExhausted)
	}
	if opts.OutDir == "" {
		return nil, fault.Configf("episode", "out_dir is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{opts: opts, deps: deps, logger: logger}, nil
}

// Options returns the runner's options.
func (r *Runner) Options() Options {
	return r.opts
}

// #endregion runner

// #region run
// episode is the mutable state of one Run.
type episode struct {
	rc    RunContext
	ctrl  controller.Controller
	model model.Model
	env   env.Environment
	rec   *record.Recorder
	log   *slog.Logger

	obs       env.Observation
	pending   *hormone.Outcome // outcome of the previous action, nil before the first
	rawPend   *env.Outcome
	toolCalls int
	tokens    int
	answer    json.RawMessage
}

// Run executes one episode and always leaves a closed steps file and an
// agent_response.json behind, also when ctx is cancelled mid-run. The error is
// non-nil for failed and cancelled runs.
func (r *Runner) Run(ctx context.Context, rc RunContext) (Result, error) {
	id := rc.Identity()
	res := Result{Identity: id, Dir: record.RunDir(r.opts.OutDir, id)}

	ctrl, err := r.deps.Controllers.New(rc.Controller)
	if err != nil {
		return res, err
	}
	log := r.logger.With("run_id", rc.RunID, "controller", rc.Controller, "task", rc.TaskID, "seed", rc.Seed)
	rec, err := record.Open(ctx, res.Dir, id, r.deps.Sinks, r.logger)
	if err != nil {
		return res, err
	}

	ep := &episode{
		rc:    rc,
		ctrl:  ctrl,
		model: r.deps.Models(),
		env:   r.deps.Envs(),
		rec:   rec,
		log:   log,
	}
	log.Info("episode started", "dir", res.Dir)

	status, runErr := r.loop(ctx, ep)
	res.Summary = r.finish(ctx, ep, status, runErr)
	log.Info("episode finished", "status", res.Summary.Status, "steps", res.Summary.Steps, "tokens", res.Summary.TotalTokens)
	return res, runErr
}

func (r *Runner) loop(ctx context.Context, ep *episode) (string, error) {
	obs, err := ep.env.Reset(ctx, ep.rc.TaskID, ep.rc.Seed)
	if err != nil {
		return r.terminal(ctx, err)
	}
	ep.obs = obs

	for i := 0; i < r.opts.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return record.StatusCancelled, fault.New(fault.ClassCancelled, "episode.run", err)
		}
		done, status, err := r.step(ctx, ep, i)
		if err != nil {
			return r.terminal(ctx, err)
		}
		if done {
			return status, nil
		}
	}
	return record.StatusNoAnswer, nil
}

// terminal classifies an error that ends the run.
func (r *Runner) terminal(ctx context.Context, err error) (string, error) {
	if ctx.Err() != nil {
		return record.StatusCancelled, fault.New(fault.ClassCancelled, "episode.run", ctx.Err())
	}
	return record.StatusFailed, err
}

// #endregion run

// #region step
// step runs one pass of the pipeline: observe, prompt, generate, enforce, act, record.
func (r *Runner) step(ctx context.Context, ep *episode, i int) (bool, string, error) {
	stepCtx := ctx
	if r.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.opts.StepTimeout)
		defer cancel()
	}

	tick, err := ep.ctrl.Observe(ep.pending)
	if err != nil {
		return false, "", err
	}
	if tick.Changed() {
		ep.log.Info("regime changed", "step", i, "from", tick.RegimeBefore, "to", tick.RegimeAfter,
			"hormones", tick.After.String())
	}
	b := tick.Bundle

	// The tool budget is advice to the model. Only the step budget forces an
	// answer, so OFF and ON runs of one script stay step-aligned.
	var forced schema.Kind
	if i == r.opts.MaxSteps-1 {
		forced = schema.KindFinalAnswer
	}
	toolsLeft := max(b.MaxToolCalls-ep.toolCalls, 0)
	req := model.Request{
		System:        systemPrompt(b),
		User:          stepPrompt(ep.obs, b, forced, toolsLeft),
		Temperature:   b.Temperature,
		MaxTokens:     b.MaxTokens,
		RiskThreshold: b.RiskThreshold,
		Initiative:    b.Initiative,
		MaxToolCalls:  toolsLeft,
		ToolAllowlist: b.ToolAllowlist,
		Intent:        string(forced),
	}
	if forced != "" {
		req.JSONSchema = r.deps.Guard.Document(forced)
	}

	sr := record.StepRecord{
		Step:           i,
		HormonesBefore: tick.Before,
		HormonesAfter:  tick.After,
		RegimeBefore:   tick.RegimeBefore,
		RegimeAfter:    tick.RegimeAfter,
		Controls:       b,
		Outcome:        ep.pending,
		RawOutcome:     ep.rawPend,
		Intent:         forced,
	}

	resp, err := ep.model.Generate(stepCtx, req)
	sr.Usage = resp.Usage
	if err != nil {
		sr.Validation = record.Validation{Status: schema.StatusAborted, Error: err.Error()}
		if werr := r.write(ctx, ep, sr); werr != nil {
			return false, "", werr
		}
		return false, "", fmt.Errorf("step %d: generate: %w", i, err)
	}
	sr.RawOutput = resp.Text

	repairer := schema.RepairFunc(func(rctx context.Context, rr schema.RepairRequest) (string, error) {
		rreq := req
		rreq.User = rr.Prompt
		rreq.Temperature = min(req.Temperature, repairTemperature)
		rreq.MaxTokens = min(req.MaxTokens, repairMaxTokens)
		rreq.Intent = string(rr.Kind)
		rreq.JSONSchema = r.deps.Guard.Document(rr.Kind)
		out, err := ep.model.Generate(rctx, rreq)
		sr.Usage = sr.Usage.Add(out.Usage)
		return out.Text, err
	})
	v := r.deps.Guard.Enforce(stepCtx, resp.Text, forced, repairer)

	sr.Intent = v.Kind
	sr.Payload = v.Payload
	sr.Validation = record.Validation{Status: v.Status, Repairs: v.Repairs(), Attempts: v.Attempts}
	if v.Err != nil {
		sr.Validation.Error = v.Err.Error()
	}
	ep.tokens += sr.Usage.TotalTokens

	var raw env.Outcome
	switch {
	case v.Status == schema.StatusAborted:
		if err := r.write(ctx, ep, sr); err != nil {
			return false, "", err
		}
		return false, "", fmt.Errorf("step %d: %w", i, v.Err)

	case v.Status == schema.StatusExhausted:
		if r.opts.OnExhausted == OnExhaustedAbort {
			if err := r.write(ctx, ep, sr); err != nil {
				return false, "", err
			}
			ep.log.Warn("episode aborted on invalid output", "step", i, "error", v.Err)
			return true, record.StatusAborted, nil
		}
		raw = env.Outcome{Failed: true, ToolErrors: 1, RiskEvents: []string{eventInvalidOutput}}

	case v.Kind == schema.KindFinalAnswer:
		sr.Final = true
		if err := r.write(ctx, ep, sr); err != nil {
			return false, "", err
		}
		ep.answer = v.Payload
		return true, record.StatusCompleted, nil

	default:
		action, err := decodeAction(v.Payload)
		if err != nil {
			return false, "", err
		}
		sr.Action = &action
		raw, err = r.act(stepCtx, ep, b, action)
		if err != nil {
			if werr := r.write(ctx, ep, sr); werr != nil {
				return false, "", werr
			}
			return false, "", fmt.Errorf("step %d: %w", i, err)
		}
		sr.PolicyBlocked = raw.PolicyBlocks > 0
	}

	if err := r.write(ctx, ep, sr); err != nil {
		return false, "", err
	}
	out := r.deps.Signals.Produce(signals.ProduceInput{
		Success:      raw.Success,
		Failed:       raw.Failed,
		Progress:     raw.Progress,
		Warnings:     len(ep.obs.Warnings),
		RiskEvents:   len(raw.RiskEvents),
		ToolErrors:   raw.ToolErrors,
		PolicyBlocks: raw.PolicyBlocks,
		Tokens:       sr.Usage.TotalTokens,
	})
	ep.pending = &out
	ep.rawPend = &raw
	return false, "", nil
}

// act executes a validated tool call unless the bundle forbids it. Only
// cancellation is returned as an error; environment failures become outcomes.
func (r *Runner) act(ctx context.Context, ep *episode, b control.Bundle, action env.Action) (env.Outcome, error) {
	if !b.Allows(action.Tool) {
		ep.log.Warn("tool blocked by regime allowlist", "tool", action.Tool)
		return env.Outcome{Failed: true, PolicyBlocks: 1, RiskEvents: []string{eventToolNotAllowed}}, nil
	}
	ep.toolCalls++
	obs, out, err := ep.env.Step(ctx, action)
	if err != nil {
		if fault.Is(err, fault.ClassCancelled) || ctx.Err() != nil {
			return env.Outcome{}, err
		}
		ep.log.Warn("tool execution failed", "tool", action.Tool, "error", err)
		return env.Outcome{Failed: true, ToolErrors: 1, RiskEvents: []string{eventToolExecution}}, nil
	}
	ep.obs = obs
	return out, nil
}

// write records sr. The record outlives step timeouts and cancellation.
func (r *Runner) write(ctx context.Context, ep *episode, sr record.StepRecord) error {
	sr.Time = time.Now().UTC()
	ep.log.Debug("step", "step", sr.Step, "regime", sr.RegimeAfter, "intent", sr.Intent,
		"validation", sr.Validation.Status, "tokens", sr.Usage.TotalTokens)
	return ep.rec.Record(context.WithoutCancel(ctx), sr)
}

func decodeAction(payload json.RawMessage) (env.Action, error) {
	var call struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}
	if err := json.Unmarshal(payload, &call); err != nil {
		return env.Action{}, fault.New(fault.ClassValidation, "episode.action", fmt.Errorf("decode tool call: %w", err))
	}
	return env.Action{Tool: call.Tool, Args: call.Args}, nil
}

// #endregion step

// #region finish
// finish writes the agent response and closes the recorder.
func (r *Runner) finish(ctx context.Context, ep *episode, status string, runErr error) record.Summary {
	sum := record.Summary{
		Status:      status,
		Steps:       ep.rec.Count(),
		TotalTokens: ep.tokens,
	}
	if runErr != nil {
		sum.Error = runErr.Error()
	}

	resp, err := agentResponse(ep.answer)
	if err != nil || status != record.StatusCompleted {
		resp = fallbackResponse(status, sum, r.opts.MaxSteps)
	}
	sum.Response = resp

	if err := ep.rec.WriteResponse(resp); err != nil {
		ep.log.Error("write agent response", "error", err)
	}
	if err := ep.rec.Finish(ctx, sum); err != nil {
		ep.log.Error("close recorder", "error", err)
	}
	return sum
}

// agentResponse drops the intent discriminator from a final answer.
func agentResponse(payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return nil, errors.New("no final answer")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	delete(fields, schema.IntentField)
	return json.Marshal(fields)
}

func fallbackResponse(status string, sum record.Summary, maxSteps int) json.RawMessage {
	details := fmt.Sprintf("No final response within step budget=%d.", maxSteps)
	switch status {
	case record.StatusAborted:
		details = fmt.Sprintf("Output failed schema validation at step %d.", sum.Steps-1)
	case record.StatusCancelled:
		details = fmt.Sprintf("Run cancelled after %d steps.", sum.Steps)
	case record.StatusFailed:
		details = "Run failed: " + sum.Error
	}
	b, _ := json.Marshal(map[string]any{
		"action":        "navigate",
		"status":        "UNKNOWN_ERROR",
		"results":       nil,
		"error_details": details,
	})
	return b
}

// #endregion finish
