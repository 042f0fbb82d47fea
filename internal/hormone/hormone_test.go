package hormone

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

const eps = 1e-9

func TestUpdateNeutralOutcomeOnlyDecays(t *testing.T) {
	cfg := DefaultConfig()
	old := Vector{Dopamine: 0.9, Cortisol: 0.4, Energy: 0.7}

	r := Update(old, Outcome{}, cfg)

	wantD := 0.5 + (0.9-0.5)*0.90
	wantC := 0.4 * 0.95
	if math.Abs(r.Vector.Dopamine-wantD) > eps {
		t.Fatalf("dopamine: expected %.6f, got %.6f", wantD, r.Vector.Dopamine)
	}
	if math.Abs(r.Vector.Cortisol-wantC) > eps {
		t.Fatalf("cortisol: expected %.6f, got %.6f", wantC, r.Vector.Cortisol)
	}
	// Energy has retention 1: it only moves through cost.
	if r.Vector.Energy != 0.7 {
		t.Fatalf("energy should not decay, got %.6f", r.Vector.Energy)
	}
	if r.Delta != (Vector{}) {
		t.Fatalf("expected zero outcome delta, got %+v", r.Delta)
	}
}

func TestUpdateHighRiskFailureRaisesCortisol(t *testing.T) {
	cfg := DefaultConfig()
	old := cfg.InitialVector()

	r := Update(old, Outcome{Failed: true, Risk: 1}, cfg)

	// 0 + 0.45*(1-0) = 0.45, then + 0.10*(1-0.45) = 0.505
	if math.Abs(r.Vector.Cortisol-0.505) > eps {
		t.Fatalf("expected cortisol 0.505, got %.6f", r.Vector.Cortisol)
	}
	if r.Vector.Dopamine >= old.Dopamine {
		t.Fatalf("failure should lower dopamine: %.4f -> %.4f", old.Dopamine, r.Vector.Dopamine)
	}
}

func TestUpdateSuccessRelievesCortisol(t *testing.T) {
	cfg := DefaultConfig()
	old := Vector{Dopamine: 0.5, Cortisol: 0.8, Energy: 1}

	r := Update(old, Outcome{Success: true, Progress: 1}, cfg)

	decayed := 0.8 * 0.95
	want := decayed - 0.10*decayed
	if math.Abs(r.Vector.Cortisol-want) > eps {
		t.Fatalf("expected cortisol %.6f, got %.6f", want, r.Vector.Cortisol)
	}
	if r.Vector.Dopamine <= 0.5 {
		t.Fatalf("success should raise dopamine, got %.4f", r.Vector.Dopamine)
	}
}

func TestUpdateCostDrainsEnergyAndClamps(t *testing.T) {
	cfg := DefaultConfig()
	old := Vector{Dopamine: 0.5, Cortisol: 0, Energy: 0.3}

	r := Update(old, Outcome{Cost: 0.5}, cfg)

	if r.Vector.Energy != 0 {
		t.Fatalf("expected energy clamped to 0, got %.6f", r.Vector.Energy)
	}
	if len(r.Clamped) != 1 || r.Clamped[0] != AxisEnergy {
		t.Fatalf("expected energy reported as clamped, got %v", r.Clamped)
	}
}

func TestUpdateIgnoresOutOfRangeSignals(t *testing.T) {
	cfg := DefaultConfig()
	old := cfg.InitialVector()

	r := Update(old, Outcome{Risk: math.NaN(), Cost: math.Inf(1), Progress: -3}, cfg)

	if !cfg.InBounds(r.Vector) {
		t.Fatalf("vector out of bounds: %+v", r.Vector)
	}
	if math.IsNaN(r.Vector.Cortisol) {
		t.Fatal("NaN risk leaked into cortisol")
	}
}

func TestUpdateDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	seq := []Outcome{
		{Failed: true, Risk: 0.7, Cost: 0.01},
		{Success: true, Progress: 0.4, Cost: 0.02},
		{Risk: 0.2, Cost: 0.05},
	}

	a, b := NewState(cfg), NewState(cfg)
	for _, o := range seq {
		va, vb := a.Update(o), b.Update(o)
		if va != vb {
			t.Fatalf("non-deterministic trajectory: %+v vs %+v", va, vb)
		}
	}
}

func TestStateReset(t *testing.T) {
	cfg := DefaultConfig()
	s := NewState(cfg)
	s.Update(Outcome{Failed: true, Risk: 1, Cost: 0.2})
	if s.Current() == cfg.InitialVector() {
		t.Fatal("update should have moved the vector")
	}

	s.Reset()
	if s.Current() != cfg.InitialVector() {
		t.Fatalf("expected initial vector after reset, got %+v", s.Current())
	}
	if len(s.Last().Clamped) != 0 || s.Last().Vector != (Vector{}) {
		t.Fatal("reset should clear last telemetry")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Cortisol.Min, bad.Cortisol.Max = 1, 0
	if err := bad.Validate(); !fault.Is(err, fault.ClassConfiguration) {
		t.Fatalf("expected configuration error for inverted bounds, got %v", err)
	}

	bad = DefaultConfig()
	bad.Dopamine.Retention = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for retention > 1")
	}

	bad = DefaultConfig()
	bad.RiskGain = -0.1
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for negative gain")
	}
}
