package control

import (
	"reflect"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
	"pgregory.net/rapid"
)

func TestNewMapperDefaultTable(t *testing.T) {
	m, err := NewMapper(DefaultTable())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	for _, r := range regime.All() {
		if _, ok := m.Map(r); !ok {
			t.Fatalf("regime %s unmapped", r)
		}
	}
}

func TestNewMapperRejectsMissingRegime(t *testing.T) {
	table := DefaultTable()
	delete(table, regime.DefensiveBudget)

	_, err := NewMapper(table)
	if !fault.Is(err, fault.ClassConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewMapperRejectsUnknownRegime(t *testing.T) {
	table := DefaultTable()
	table[regime.Regime("reckless")] = table[regime.Nominal]

	if _, err := NewMapper(table); err == nil {
		t.Fatal("expected error for unknown regime")
	}
}

func TestNewMapperRejectsMalformedBundle(t *testing.T) {
	table := DefaultTable()
	b := table[regime.Defensive]
	b.RiskThreshold = 1.5
	table[regime.Defensive] = b

	if _, err := NewMapper(table); err == nil {
		t.Fatal("expected error for risk threshold > 1")
	}
}

func TestMapReturnsIsolatedCopy(t *testing.T) {
	m, err := NewMapper(DefaultTable())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}

	b, _ := m.Map(regime.Defensive)
	b.ToolAllowlist[0] = "browser.type"
	b.Temperature = 2

	again, _ := m.Map(regime.Defensive)
	if again.ToolAllowlist[0] != "browser.goto" {
		t.Fatalf("caller mutation leaked into table: %v", again.ToolAllowlist)
	}
	if again.Temperature != 0.1 {
		t.Fatalf("expected temperature 0.1, got %f", again.Temperature)
	}
}

func TestMapperIgnoresLaterTableMutation(t *testing.T) {
	table := DefaultTable()
	m, err := NewMapper(table)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	table[regime.Nominal] = Bundle{Temperature: 1.9, MaxTokens: 1}

	b, _ := m.Map(regime.Nominal)
	if b.Temperature != 0.5 {
		t.Fatalf("mapper shares storage with caller table: %f", b.Temperature)
	}
}

func TestBundleAllows(t *testing.T) {
	open := Bundle{}
	if !open.Allows("browser.type") {
		t.Fatal("nil allowlist should allow every tool")
	}
	locked := DefaultTable()[regime.Defensive]
	if locked.Allows("browser.type") {
		t.Fatal("defensive bundle should block browser.type")
	}
	if !locked.Allows("browser.read") {
		t.Fatal("defensive bundle should allow browser.read")
	}
}

func TestDefensiveIsMoreConservative(t *testing.T) {
	table := DefaultTable()
	nom, def := table[regime.Nominal], table[regime.Defensive]
	if def.Temperature >= nom.Temperature || def.RiskThreshold >= nom.RiskThreshold || def.MaxToolCalls >= nom.MaxToolCalls {
		t.Fatalf("defensive bundle should be strictly tighter: %+v vs %+v", def, nom)
	}
	if def.Initiative {
		t.Fatal("defensive bundle should not allow multi-step initiative")
	}
}

// Property: purity.
// Map(r) called twice yields deeply identical bundles for every regime.
func TestPropertyMapIsPure(t *testing.T) {
	m, err := NewMapper(DefaultTable())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	rapid.Check(t, func(rt *rapid.T) {
		r := rapid.SampledFrom(regime.All()).Draw(rt, "regime")
		a, _ := m.Map(r)
		b, _ := m.Map(r)
		if !reflect.DeepEqual(a, b) {
			rt.Fatalf("map(%s) not pure: %+v vs %+v", r, a, b)
		}
	})
}
