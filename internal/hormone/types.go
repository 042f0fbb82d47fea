package hormone

import (
	"fmt"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

// #region axis
// Axis names one dimension of the hormone vector.
type Axis string

const (
	AxisDopamine Axis = "dopamine" // risk appetite / momentum
	AxisCortisol Axis = "cortisol" // caution / defensiveness
	AxisEnergy   Axis = "energy"   // budget remaining
)

// Axes returns the three axes in canonical order.
func Axes() []Axis {
	return []Axis{AxisDopamine, AxisCortisol, AxisEnergy}
}

// #endregion axis

// #region vector
// Vector is the tri-axis internal control state.
type Vector struct {
	Dopamine float64 `json:"dopamine"`
	Cortisol float64 `json:"cortisol"`
	Energy   float64 `json:"energy"`
}

// Get returns the value of one axis.
func (v Vector) Get(a Axis) float64 {
	switch a {
	case AxisDopamine:
		return v.Dopamine
	case AxisCortisol:
		return v.Cortisol
	case AxisEnergy:
		return v.Energy
	}
	return 0
}

// #endregion vector

// #region outcome
// Outcome is the normalised result of the previous action, consumed by one Update call.
// Risk and Cost are expected in [0,1]; Progress is optional partial credit in [0,1].
type Outcome struct {
	Success  bool    `json:"success"`
	Failed   bool    `json:"failed"`
	Progress float64 `json:"progress"`
	Risk     float64 `json:"risk"`
	Cost     float64 `json:"cost"`
}

// #endregion outcome

// #region config
// AxisConfig declares the bounds and decay behaviour of one axis.
type AxisConfig struct {
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Baseline  float64 `yaml:"baseline"`  // neutral value the axis decays toward
	Initial   float64 `yaml:"initial"`   // value at episode start
	Retention float64 `yaml:"retention"` // per-step decay factor in [0,1]; 1 = no decay
}

// Config holds per-axis bounds and per-signal gains for the update rule.
type Config struct {
	Dopamine AxisConfig `yaml:"dopamine"`
	Cortisol AxisConfig `yaml:"cortisol"`
	Energy   AxisConfig `yaml:"energy"`

	RewardGain  float64 `yaml:"reward_gain"`  // dopamine rise per unit reward
	SetbackGain float64 `yaml:"setback_gain"` // dopamine fall on failure
	RiskGain    float64 `yaml:"risk_gain"`    // cortisol rise per unit risk
	FailureGain float64 `yaml:"failure_gain"` // cortisol rise on failure
	ReliefGain  float64 `yaml:"relief_gain"`  // cortisol fall on success
	CostGain    float64 `yaml:"cost_gain"`    // energy fall per unit cost
}

// DefaultConfig returns gains tuned so that three consecutive high-risk failures
// push cortisol over the default caution threshold on the third step.
func DefaultConfig() Config {
	return Config{
		Dopamine:    AxisConfig{Min: 0, Max: 1, Baseline: 0.5, Initial: 0.5, Retention: 0.90},
		Cortisol:    AxisConfig{Min: 0, Max: 1, Baseline: 0, Initial: 0, Retention: 0.95},
		Energy:      AxisConfig{Min: 0, Max: 1, Baseline: 1, Initial: 1, Retention: 1},
		RewardGain:  0.25,
		SetbackGain: 0.10,
		RiskGain:    0.45,
		FailureGain: 0.10,
		ReliefGain:  0.10,
		CostGain:    1.0,
	}
}

// Axis returns the config of one axis.
func (c Config) Axis(a Axis) AxisConfig {
	switch a {
	case AxisDopamine:
		return c.Dopamine
	case AxisCortisol:
		return c.Cortisol
	default:
		return c.Energy
	}
}

// InitialVector returns the episode start vector, clamped to bounds.
func (c Config) InitialVector() Vector {
	return Vector{
		Dopamine: clamp(c.Dopamine.Initial, c.Dopamine),
		Cortisol: clamp(c.Cortisol.Initial, c.Cortisol),
		Energy:   clamp(c.Energy.Initial, c.Energy),
	}
}

// Validate rejects bounds and gains that would break the clamping invariant.
func (c Config) Validate() error {
	for _, a := range Axes() {
		ac := c.Axis(a)
		if !(ac.Min < ac.Max) {
			return fault.Configf("hormone", "axis %s: min %.4f must be below max %.4f", a, ac.Min, ac.Max)
		}
		if ac.Baseline < ac.Min || ac.Baseline > ac.Max {
			return fault.Configf("hormone", "axis %s: baseline %.4f outside [%.4f, %.4f]", a, ac.Baseline, ac.Min, ac.Max)
		}
		if ac.Retention < 0 || ac.Retention > 1 {
			return fault.Configf("hormone", "axis %s: retention %.4f outside [0, 1]", a, ac.Retention)
		}
	}
	gains := map[string]float64{
		"reward_gain":  c.RewardGain,
		"setback_gain": c.SetbackGain,
		"risk_gain":    c.RiskGain,
		"failure_gain": c.FailureGain,
		"relief_gain":  c.ReliefGain,
		"cost_gain":    c.CostGain,
	}
	for name, g := range gains {
		if g < 0 {
			return fault.Configf("hormone", "%s must be non-negative, got %.4f", name, g)
		}
	}
	return nil
}

// String renders the vector compactly for logs.
func (v Vector) String() string {
	return fmt.Sprintf("d=%.3f c=%.3f e=%.3f", v.Dopamine, v.Cortisol, v.Energy)
}

// #endregion config
