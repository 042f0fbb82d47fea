package controller

import (
	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
)

// #region config
// Config gathers everything a controller needs. It is validated once by NewFactory
// and shared read-only by every episode.
type Config struct {
	Hormone    hormone.Config    `yaml:"hormone"`
	Thresholds regime.Thresholds `yaml:"thresholds"`
	Rules      []regime.Rule     `yaml:"-"` // nil = regime.DefaultRules()
	Table      control.Table     `yaml:"controls"`
}

func DefaultConfig() Config {
	return Config{
		Hormone:    hormone.DefaultConfig(),
		Thresholds: regime.DefaultThresholds(),
		Table:      control.DefaultTable(),
	}
}

// #endregion config

// #region tick
// Tick is the controller state after consuming the outcome of one step.
type Tick struct {
	Before       hormone.Vector
	After        hormone.Vector
	RegimeBefore regime.Regime
	RegimeAfter  regime.Regime
	Conditions   []regime.Condition
	Bundle       control.Bundle
}

// Changed reports whether the step flipped the regime.
func (t Tick) Changed() bool {
	return t.RegimeBefore != t.RegimeAfter
}

// #endregion tick

// #region controller
// Controller turns step outcomes into the control bundle for the next model call.
// One instance belongs to one episode.
type Controller interface {
	// Mode is "on" or "off".
	Mode() string
	// Observe consumes the previous action's outcome, nil on the first step.
	Observe(o *hormone.Outcome) (Tick, error)
	Reset()
}

// #endregion controller
