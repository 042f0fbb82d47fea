package env

import (
	"context"
	"reflect"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

func TestToyIsDeterministic(t *testing.T) {
	run := func() []Outcome {
		e := NewToy()
		if _, err := e.Reset(context.Background(), 3, 42); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		var outs []Outcome
		for _, tool := range []string{"browser.goto", "browser.read", "browser.type", "browser.find"} {
			_, o, err := e.Step(context.Background(), Action{Tool: tool})
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			outs = append(outs, o)
		}
		return outs
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Fatalf("same task and seed diverged:\n%+v\n%+v", a, b)
	}
}

func TestToyReadsReachSuccess(t *testing.T) {
	e := NewToy()
	if _, err := e.Reset(context.Background(), 1, 7); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	var last Outcome
	for i := 0; i < 3; i++ {
		_, o, err := e.Step(context.Background(), Action{Tool: "browser.read"})
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		last = o
	}
	if !last.Success || last.Progress != 1 {
		t.Fatalf("three reads should finish the task, got %+v", last)
	}
}

func TestToyUnknownToolIsFailure(t *testing.T) {
	e := NewToy()
	if _, err := e.Reset(context.Background(), 1, 7); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	_, o, err := e.Step(context.Background(), Action{Tool: "shell.exec"})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !o.Failed || o.ToolErrors != 1 {
		t.Fatalf("expected tool error, got %+v", o)
	}
}

func TestToyTypingIsRiskEvent(t *testing.T) {
	e := NewToy()
	if _, err := e.Reset(context.Background(), 2, 1); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	_, o, _ := e.Step(context.Background(), Action{Tool: "browser.type", Args: map[string]any{"text": "hi"}})
	if len(o.RiskEvents) == 0 || o.RiskEvents[0] != "mutation_attempt" {
		t.Fatalf("expected mutation_attempt risk event, got %+v", o.RiskEvents)
	}
}

func TestToyStepBeforeReset(t *testing.T) {
	_, _, err := NewToy().Step(context.Background(), Action{Tool: "browser.read"})
	if !fault.Is(err, fault.ClassEnvironment) {
		t.Fatalf("expected environment error, got %v", err)
	}
}

func TestToyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewToy().Reset(ctx, 1, 1); !fault.Is(err, fault.ClassCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestScriptedReplaysThenGoesQuiet(t *testing.T) {
	script := []Outcome{{Failed: true}, {Success: true, Progress: 1}}
	e := NewScripted(script)
	script[0].Failed = false

	if _, err := e.Reset(context.Background(), 9, 0); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for i, want := range []Outcome{{Failed: true}, {Success: true, Progress: 1}, {}} {
		_, got, err := e.Step(context.Background(), Action{Tool: "browser.read"})
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("step %d: got %+v, want %+v", i, got, want)
		}
	}
}
