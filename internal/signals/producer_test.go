package signals

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

func newTestProducer(t *testing.T) *Producer {
	t.Helper()
	p, err := NewProducer(DefaultProducerConfig())
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	return p
}

// #region risk-tests

func TestRiskSignal_NoEvents(t *testing.T) {
	p := newTestProducer(t)
	if got := p.Produce(ProduceInput{}).Risk; got != 0 {
		t.Errorf("expected 0 risk without events, got %f", got)
	}
}

func TestRiskSignal_PolicyBlock(t *testing.T) {
	p := newTestProducer(t)
	got := p.Produce(ProduceInput{PolicyBlocks: 1}).Risk
	want := 1 - math.Exp(-0.35)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestRiskSignal_Saturates(t *testing.T) {
	p := newTestProducer(t)
	one := p.Produce(ProduceInput{ToolErrors: 1}).Risk
	two := p.Produce(ProduceInput{ToolErrors: 2}).Risk
	many := p.Produce(ProduceInput{ToolErrors: 200, PolicyBlocks: 200}).Risk
	if !(one < two && two < many) {
		t.Errorf("risk should grow with events: %f %f %f", one, two, many)
	}
	if two-one >= one {
		t.Errorf("expected diminishing returns, got increments %f then %f", one, two-one)
	}
	if many > 1 {
		t.Errorf("risk above 1: %f", many)
	}
}

func TestRiskSignal_NegativeCountsIgnored(t *testing.T) {
	p := newTestProducer(t)
	if got := p.Produce(ProduceInput{Warnings: -5}).Risk; got != 0 {
		t.Errorf("negative counts should not lower risk, got %f", got)
	}
}

// #endregion risk-tests

// #region cost-tests

func TestCostSignal_Budget(t *testing.T) {
	p := newTestProducer(t)
	if got := p.Produce(ProduceInput{Tokens: 20_000}).Cost; math.Abs(got-0.1) > 1e-12 {
		t.Errorf("expected cost 0.1, got %f", got)
	}
	if got := p.Produce(ProduceInput{Tokens: 1_000_000}).Cost; got != 1 {
		t.Errorf("expected cost clamped to 1, got %f", got)
	}
}

func TestCostSignal_ZeroBudget(t *testing.T) {
	cfg := DefaultProducerConfig()
	cfg.TokenBudget = 0
	p, err := NewProducer(cfg)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	if got := p.Produce(ProduceInput{Tokens: 5000}).Cost; got != 0 {
		t.Errorf("zero budget should disable cost, got %f", got)
	}
}

// #endregion cost-tests

// #region produce-tests

func TestProduce_PassesVerdictAndClampsProgress(t *testing.T) {
	p := newTestProducer(t)
	o := p.Produce(ProduceInput{Success: true, Progress: 3})
	if !o.Success || o.Failed {
		t.Errorf("verdict not carried: %+v", o)
	}
	if o.Progress != 1 {
		t.Errorf("expected progress clamped to 1, got %f", o.Progress)
	}
	if got := p.Produce(ProduceInput{Progress: math.NaN()}).Progress; got != 0 {
		t.Errorf("NaN progress should map to 0, got %f", got)
	}
}

func TestNewProducer_RejectsNegativeWeight(t *testing.T) {
	cfg := DefaultProducerConfig()
	cfg.ToolErrorWeight = -0.2
	if _, err := NewProducer(cfg); !fault.Is(err, fault.ClassConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

// #endregion produce-tests
