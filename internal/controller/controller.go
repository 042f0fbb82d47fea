package controller

import (
	"fmt"

	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
)

// #region factory
// Factory holds the validated, immutable parts of the controller and builds
// per-episode instances.
type Factory struct {
	hormone  hormone.Config
	selector *regime.Selector
	mapper   *control.Mapper
}

// NewFactory validates cfg. Every failure is a configuration error.
func NewFactory(cfg Config) (*Factory, error) {
	if err := cfg.Hormone.Validate(); err != nil {
		return nil, err
	}
	selector, err := regime.NewSelector(cfg.Thresholds, cfg.Rules)
	if err != nil {
		return nil, err
	}
	mapper, err := control.NewMapper(cfg.Table)
	if err != nil {
		return nil, err
	}
	return &Factory{hormone: cfg.Hormone, selector: selector, mapper: mapper}, nil
}

// New builds a fresh controller for mode "on" or "off".
func (f *Factory) New(mode string) (Controller, error) {
	switch mode {
	case record.ControllerOn:
		return &On{
			state:   hormone.NewState(f.hormone),
			machine: regime.NewMachine(f.selector),
			mapper:  f.mapper,
		}, nil
	case record.ControllerOff:
		b, ok := f.mapper.Map(regime.Baseline)
		if !ok {
			return nil, fault.Configf("controller", "baseline bundle missing")
		}
		return &Off{vector: f.hormone.InitialVector(), bundle: b}, nil
	}
	return nil, fault.Configf("controller", "unknown controller mode %q", mode)
}

// #endregion factory

// #region on
// On runs the full pipeline: hormone update, hysteretic regime selection, bundle lookup.
type On struct {
	state   *hormone.State
	machine *regime.Machine
	mapper  *control.Mapper
}

func (c *On) Mode() string { return record.ControllerOn }

func (c *On) Observe(o *hormone.Outcome) (Tick, error) {
	t := Tick{Before: c.state.Current(), RegimeBefore: c.machine.Current()}
	if o != nil {
		c.state.Update(*o)
	}
	t.After = c.state.Current()

	tr := c.machine.Step(t.After)
	t.RegimeAfter = tr.To
	t.Conditions = tr.Conditions

	b, ok := c.mapper.Map(tr.To)
	if !ok {
		return Tick{}, fault.New(fault.ClassConfiguration, "controller.observe", fmt.Errorf("regime %q has no bundle", tr.To))
	}
	t.Bundle = b
	return t, nil
}

func (c *On) Reset() {
	c.state.Reset()
	c.machine.Reset()
}

// #endregion on

// #region off
// Off is the baseline: a constant vector, the baseline regime and its fixed bundle.
// Outcomes are accepted and ignored so both modes share one step pipeline.
type Off struct {
	vector hormone.Vector
	bundle control.Bundle
}

func (c *Off) Mode() string { return record.ControllerOff }

func (c *Off) Observe(*hormone.Outcome) (Tick, error) {
	b := c.bundle
	if b.ToolAllowlist != nil {
		b.ToolAllowlist = append([]string(nil), b.ToolAllowlist...)
	}
	return Tick{
		Before:       c.vector,
		After:        c.vector,
		RegimeBefore: regime.Baseline,
		RegimeAfter:  regime.Baseline,
		Bundle:       b,
	}, nil
}

func (c *Off) Reset() {}

// #endregion off
