package eval

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
)

const success = `{"action":"retrieve","status":"SUCCESS","results":["x"],"error_details":null}`

// writeRun records steps tool calls followed by a final answer when final is set.
func writeRun(t *testing.T, out string, task int, seed int64, ctrl string, steps int, final bool, tokens int) string {
	t.Helper()
	id := record.Identity{RunID: ctrl, Benchmark: "toy", TaskID: task, Seed: seed, Controller: ctrl}
	dir := record.RunDir(out, id)
	rec, err := record.Open(context.Background(), dir, id, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < steps; i++ {
		sr := record.StepRecord{
			Step:        i,
			RegimeAfter: regime.Nominal,
			Usage:       model.Usage{TotalTokens: tokens},
			Validation:  record.Validation{Status: schema.StatusValid},
		}
		if i > 0 {
			sr.RawOutcome = &env.Outcome{Failed: true, RiskEvents: []string{"tool_not_allowed"}, PolicyBlocks: 1}
		}
		if final && i == steps-1 {
			sr.Final = true
			sr.Validation = record.Validation{Status: schema.StatusRepaired, Repairs: 1}
		}
		if err := rec.Record(context.Background(), sr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if final {
		if err := rec.WriteResponse(json.RawMessage(success)); err != nil {
			t.Fatalf("WriteResponse: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return dir
}

// #region measure
func TestMeasure(t *testing.T) {
	out := t.TempDir()
	dir := writeRun(t, out, 1, 2, record.ControllerOn, 3, true, 100)

	m, err := Measure(record.Location{Dir: dir, Benchmark: "toy", TaskID: 1, Seed: 2, Controller: record.ControllerOn})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if !m.Success || m.Utility != 1 || m.HardFailure {
		t.Fatalf("expected a successful run, got %+v", m)
	}
	if m.Steps != 3 || m.Tokens != 300 || m.RiskEvents != 2 || m.PolicyBlocks != 2 || m.Repairs != 1 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.Regimes[regime.Nominal] != 3 {
		t.Fatalf("unexpected regimes %v", m.Regimes)
	}
}

func TestMeasureWithoutResponse(t *testing.T) {
	out := t.TempDir()
	dir := writeRun(t, out, 1, 2, record.ControllerOff, 2, false, 10)
	m, err := Measure(record.Location{Dir: dir, Controller: record.ControllerOff})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if m.Success || !m.HardFailure || m.Utility != 0 {
		t.Fatalf("expected a hard failure, got %+v", m)
	}
}

// #endregion measure

// #region pair
func TestPair(t *testing.T) {
	runs := []RunMetrics{
		{Dir: "a/off", Benchmark: "toy", TaskID: 1, Seed: 1, Controller: record.ControllerOff, Utility: 0},
		{Dir: "a/on", Benchmark: "toy", TaskID: 1, Seed: 1, Controller: record.ControllerOn, Utility: 1},
		{Dir: "b/on", Benchmark: "toy", TaskID: 2, Seed: 1, Controller: record.ControllerOn},
	}
	pairs, unpaired := Pair(runs)
	if len(pairs) != 1 || pairs[0].Off.Dir != "a/off" || pairs[0].On.Dir != "a/on" {
		t.Fatalf("unexpected pairs %+v", pairs)
	}
	if len(unpaired) != 1 || unpaired[0].Dir != "b/on" {
		t.Fatalf("unexpected unpaired %+v", unpaired)
	}
	d, err := Deltas(pairs, MetricUtility)
	if err != nil || len(d) != 1 || d[0] != 1 {
		t.Fatalf("unexpected deltas %v (%v)", d, err)
	}
	if _, err := Deltas(pairs, "happiness"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

// #endregion pair

// #region bootstrap
func TestBootstrapCIConstantDeltas(t *testing.T) {
	ci := BootstrapCI([]float64{2, 2, 2, 2}, DefaultEvalConfig())
	if ci.Mean != 2 || ci.Lo != 2 || ci.Hi != 2 || ci.N != 4 {
		t.Fatalf("unexpected CI %+v", ci)
	}
}

func TestBootstrapCIEmpty(t *testing.T) {
	ci := BootstrapCI(nil, DefaultEvalConfig())
	if !math.IsNaN(ci.Mean) || !math.IsNaN(ci.Lo) || !math.IsNaN(ci.Hi) {
		t.Fatalf("expected NaNs, got %+v", ci)
	}
	data, err := json.Marshal(ci)
	if err != nil {
		t.Fatalf("marshal empty CI: %v", err)
	}
	if string(data) != `{"mean":null,"lo":null,"hi":null,"n":0}` {
		t.Fatalf("unexpected JSON %s", data)
	}
}

func TestBootstrapCIIsSeeded(t *testing.T) {
	deltas := []float64{-1, 0, 1, 1, 0, 1, -1, 1, 1, 0}
	a := BootstrapCI(deltas, DefaultEvalConfig())
	b := BootstrapCI(deltas, DefaultEvalConfig())
	if a != b {
		t.Fatalf("same seed gave different intervals: %+v vs %+v", a, b)
	}
	if !(a.Lo <= a.Mean && a.Mean <= a.Hi) || a.Lo < -1 || a.Hi > 1 {
		t.Fatalf("interval does not bracket the mean: %+v", a)
	}
}

// #endregion bootstrap

// #region shape
func TestCompareDetectsFieldDrift(t *testing.T) {
	out := t.TempDir()
	off := writeRun(t, out, 1, 1, record.ControllerOff, 2, true, 10)
	on := writeRun(t, out, 1, 1, record.ControllerOn, 4, false, 10)

	res, err := Compare("toy/task_1/seed_1", off, on)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !res.Passed {
		t.Fatalf("records of one build must share a shape: %s", res.Reason)
	}

	f, err := os.OpenFile(filepath.Join(on, record.StepsFile), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(`{"step":4,"mood":"cheerful"}` + "\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	res, err = Compare("toy/task_1/seed_1", off, on)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Passed || res.Metrics[1].Value != 1 {
		t.Fatalf("expected drift on the ON side, got %+v", res)
	}
}

// #endregion shape

// #region evaluate
func TestEvaluate(t *testing.T) {
	out := t.TempDir()
	writeRun(t, out, 1, 1, record.ControllerOff, 2, false, 50)
	writeRun(t, out, 1, 1, record.ControllerOn, 3, true, 50)
	writeRun(t, out, 2, 1, record.ControllerOff, 2, true, 50)
	writeRun(t, out, 2, 1, record.ControllerOn, 2, true, 50)
	writeRun(t, out, 3, 1, record.ControllerOn, 1, true, 50)

	rep, err := Evaluate(out, DefaultEvalConfig())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rep.Runs) != 5 || rep.Pairs != 2 || len(rep.Unpaired) != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	u := rep.Deltas[MetricUtility]
	if u.N != 2 || u.Mean != 0.5 {
		t.Fatalf("unexpected utility delta %+v", u)
	}
	if len(rep.Shape) != 2 || !rep.Shape[0].Passed || !rep.Shape[1].Passed {
		t.Fatalf("unexpected shape verdicts %+v", rep.Shape)
	}
}

// #endregion evaluate
