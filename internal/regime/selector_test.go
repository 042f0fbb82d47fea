package regime

import (
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
)

func newTestSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := NewSelector(DefaultThresholds(), nil)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return s
}

func vec(d, c, e float64) hormone.Vector {
	return hormone.Vector{Dopamine: d, Cortisol: c, Energy: e}
}

func TestClassifyNeutralState(t *testing.T) {
	s := newTestSelector(t)
	if got := s.Classify(vec(0.5, 0, 1), Nominal); got != Nominal {
		t.Fatalf("expected nominal, got %s", got)
	}
}

func TestClassifyEntersDefensiveAtEnterThreshold(t *testing.T) {
	s := newTestSelector(t)
	if got := s.Classify(vec(0.5, 0.79, 1), Nominal); got != Nominal {
		t.Fatalf("below enter: expected nominal, got %s", got)
	}
	if got := s.Classify(vec(0.5, 0.80, 1), Nominal); got != Defensive {
		t.Fatalf("at enter: expected defensive, got %s", got)
	}
}

func TestClassifyDefensiveHeldUntilExit(t *testing.T) {
	s := newTestSelector(t)
	if got := s.Classify(vec(0.5, 0.65, 1), Defensive); got != Defensive {
		t.Fatalf("inside band: expected defensive, got %s", got)
	}
	if got := s.Classify(vec(0.5, 0.60, 1), Defensive); got != Defensive {
		t.Fatalf("at exit: expected defensive, got %s", got)
	}
	if got := s.Classify(vec(0.5, 0.59, 1), Defensive); got != Nominal {
		t.Fatalf("past exit: expected nominal, got %s", got)
	}
}

func TestClassifyDepletionIsFalling(t *testing.T) {
	s := newTestSelector(t)
	if got := s.Classify(vec(0.5, 0, 0.25), Nominal); got != Nominal {
		t.Fatalf("energy above enter: expected nominal, got %s", got)
	}
	if got := s.Classify(vec(0.5, 0, 0.2), Nominal); got != BudgetConstrained {
		t.Fatalf("energy at enter: expected budget_constrained, got %s", got)
	}
	if got := s.Classify(vec(0.5, 0, 0.28), BudgetConstrained); got != BudgetConstrained {
		t.Fatalf("energy inside band: expected budget_constrained, got %s", got)
	}
	if got := s.Classify(vec(0.5, 0, 0.31), BudgetConstrained); got != Nominal {
		t.Fatalf("energy past exit: expected nominal, got %s", got)
	}
}

func TestClassifyConservativeRegimeWinsTies(t *testing.T) {
	s := newTestSelector(t)

	// Momentum and caution both satisfied: the defensive regime wins.
	if got := s.Classify(vec(0.9, 0.9, 1), Nominal); got != Defensive {
		t.Fatalf("expected defensive, got %s", got)
	}
	// Caution and depletion together select the combined regime.
	if got := s.Classify(vec(0.9, 0.9, 0.1), Nominal); got != DefensiveBudget {
		t.Fatalf("expected defensive_budget, got %s", got)
	}
	// Momentum and depletion: budget wins over exploration.
	if got := s.Classify(vec(0.9, 0, 0.1), Nominal); got != BudgetConstrained {
		t.Fatalf("expected budget_constrained, got %s", got)
	}
}

func TestClassifyExploratoryHysteresis(t *testing.T) {
	s := newTestSelector(t)
	if got := s.Classify(vec(0.76, 0, 1), Nominal); got != Exploratory {
		t.Fatalf("expected exploratory, got %s", got)
	}
	if got := s.Classify(vec(0.6, 0, 1), Exploratory); got != Exploratory {
		t.Fatalf("inside band: expected exploratory, got %s", got)
	}
	if got := s.Classify(vec(0.6, 0, 1), Nominal); got != Nominal {
		t.Fatalf("same value from nominal: expected nominal, got %s", got)
	}
}

func TestClassifyFromBaselineHoldsNothing(t *testing.T) {
	s := newTestSelector(t)
	if got := s.Classify(vec(0.5, 0.7, 1), Baseline); got != Nominal {
		t.Fatalf("expected nominal, got %s", got)
	}
}

func TestTransitionReportsConditions(t *testing.T) {
	s := newTestSelector(t)
	tr := s.Transition(vec(0.9, 0.9, 0.1), Nominal)
	if !tr.Changed() {
		t.Fatal("expected a regime change")
	}
	if len(tr.Conditions) != 3 {
		t.Fatalf("expected 3 active conditions, got %v", tr.Conditions)
	}
}

func TestMachineStartsNominalAndResets(t *testing.T) {
	m := NewMachine(newTestSelector(t))
	if m.Current() != Nominal {
		t.Fatalf("expected nominal start, got %s", m.Current())
	}
	m.Step(vec(0.5, 0.95, 1))
	if m.Current() != Defensive {
		t.Fatalf("expected defensive, got %s", m.Current())
	}
	m.Reset()
	if m.Current() != Nominal {
		t.Fatalf("expected nominal after reset, got %s", m.Current())
	}
}

func TestNewSelectorRejectsBadConfig(t *testing.T) {
	th := DefaultThresholds()
	th.CautionExit = th.CautionEnter
	if _, err := NewSelector(th, nil); !fault.Is(err, fault.ClassConfiguration) {
		t.Fatalf("expected configuration error for zero-width band, got %v", err)
	}

	th = DefaultThresholds()
	th.DepletionExit = 0.1
	if _, err := NewSelector(th, nil); err == nil {
		t.Fatal("expected error for falling guard with exit below enter")
	}

	rules := []Rule{{Regime: Defensive, Requires: []Condition{CondCaution}, Rank: 1}}
	if _, err := NewSelector(DefaultThresholds(), rules); err == nil {
		t.Fatal("expected error for table without fallback")
	}

	rules = append(DefaultRules(), Rule{Regime: Baseline, Rank: 9})
	if _, err := NewSelector(DefaultThresholds(), rules); err == nil {
		t.Fatal("expected error for baseline rule")
	}

	rules = DefaultRules()
	rules[1].Rank = rules[0].Rank
	if _, err := NewSelector(DefaultThresholds(), rules); err == nil {
		t.Fatal("expected error for shared rank")
	}
}

func TestRegimeIsValid(t *testing.T) {
	for _, r := range All() {
		if !r.IsValid() {
			t.Fatalf("%s should be valid", r)
		}
	}
	if Regime("panic").IsValid() {
		t.Fatal("unknown regime should be invalid")
	}
}
