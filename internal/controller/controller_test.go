package controller

import (
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
)

func newTestController(t *testing.T, mode string) Controller {
	t.Helper()
	f, err := NewFactory(DefaultConfig())
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	c, err := f.New(mode)
	if err != nil {
		t.Fatalf("New(%s): %v", mode, err)
	}
	return c
}

func observe(t *testing.T, c Controller, o *hormone.Outcome) Tick {
	t.Helper()
	tick, err := c.Observe(o)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	return tick
}

func TestFirstStepIsNominal(t *testing.T) {
	c := newTestController(t, "on")
	tick := observe(t, c, nil)
	if tick.RegimeAfter != regime.Nominal || tick.Before != tick.After {
		t.Fatalf("unexpected first tick %+v", tick)
	}
	if tick.Bundle.Temperature != 0.5 {
		t.Fatalf("expected nominal bundle, got %+v", tick.Bundle)
	}
}

func TestThreeHighRiskFailuresTurnDefensive(t *testing.T) {
	c := newTestController(t, "on")
	observe(t, c, nil)

	fail := &hormone.Outcome{Failed: true, Risk: 1}
	want := []regime.Regime{regime.Nominal, regime.Nominal, regime.Defensive}
	for i, w := range want {
		tick := observe(t, c, fail)
		if tick.RegimeAfter != w {
			t.Fatalf("failure %d: expected %s, got %s (cortisol %.3f)", i+1, w, tick.RegimeAfter, tick.After.Cortisol)
		}
	}

	tick := observe(t, c, &hormone.Outcome{Success: true, Progress: 1})
	if tick.RegimeAfter != regime.Defensive {
		t.Fatalf("one success flipped back to %s (cortisol %.3f)", tick.RegimeAfter, tick.After.Cortisol)
	}
	if tick.Bundle.Allows("browser.type") {
		t.Fatal("defensive bundle should block mutations")
	}
}

func TestResetRestoresEpisodeStart(t *testing.T) {
	c := newTestController(t, "on")
	for i := 0; i < 4; i++ {
		observe(t, c, &hormone.Outcome{Failed: true, Risk: 1})
	}
	c.Reset()
	tick := observe(t, c, nil)
	if tick.RegimeBefore != regime.Nominal || tick.After != hormone.DefaultConfig().InitialVector() {
		t.Fatalf("reset did not restore start: %+v", tick)
	}
}

func TestOffIgnoresOutcomes(t *testing.T) {
	c := newTestController(t, "off")
	first := observe(t, c, nil)
	for i := 0; i < 5; i++ {
		tick := observe(t, c, &hormone.Outcome{Failed: true, Risk: 1, Cost: 0.5})
		if tick.After != first.After || tick.RegimeAfter != regime.Baseline {
			t.Fatalf("off controller moved: %+v", tick)
		}
	}
	if first.Bundle.Temperature != 0.5 || first.Bundle.MaxToolCalls != 12 {
		t.Fatalf("unexpected baseline bundle %+v", first.Bundle)
	}
}

func TestUnknownMode(t *testing.T) {
	f, err := NewFactory(DefaultConfig())
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	if _, err := f.New("auto"); !fault.Is(err, fault.ClassConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewFactoryRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.CautionExit = 0.9
	if _, err := NewFactory(cfg); !fault.Is(err, fault.ClassConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg = DefaultConfig()
	delete(cfg.Table, regime.Baseline)
	if _, err := NewFactory(cfg); err == nil {
		t.Fatal("expected error for missing baseline bundle")
	}
}
