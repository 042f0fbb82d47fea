package regime

import (
	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
)

// #region regime
// Regime is a discrete behavioural mode selected from the hormone vector.
type Regime string

const (
	Nominal           Regime = "nominal"
	Exploratory       Regime = "exploratory"
	Defensive         Regime = "defensive"
	BudgetConstrained Regime = "budget_constrained"
	DefensiveBudget   Regime = "defensive_budget"

	// Baseline is never selected by the classifier. Controller-off runs report it
	// so their records keep the same shape as controller-on runs.
	Baseline Regime = "baseline"
)

// All returns every regime the control table must cover, Baseline included.
func All() []Regime {
	return []Regime{Nominal, Exploratory, Defensive, BudgetConstrained, DefensiveBudget, Baseline}
}

// IsValid reports whether r belongs to the closed set.
func (r Regime) IsValid() bool {
	switch r {
	case Nominal, Exploratory, Defensive, BudgetConstrained, DefensiveBudget, Baseline:
		return true
	}
	return false
}

// #endregion regime

// #region condition
// Condition is a hysteretic predicate over one hormone axis.
type Condition string

const (
	CondCaution   Condition = "caution"   // cortisol high
	CondDepletion Condition = "depletion" // energy low
	CondMomentum  Condition = "momentum"  // dopamine high
)

// Guard holds the two thresholds of a condition. Rising guards enter when the axis
// reaches Enter and are held until it drops below Exit (Exit < Enter). Falling guards
// mirror that: enter at or below Enter, held until the axis rises above Exit (Exit > Enter).
type Guard struct {
	Condition Condition
	Axis      hormone.Axis
	Rising    bool
	Enter     float64
	Exit      float64
}

// #endregion condition

// #region rule
// Rule maps a set of active conditions to a regime. Rank orders rules by
// conservativeness: higher rank means lower risk tolerance and wins ties.
type Rule struct {
	Regime   Regime
	Requires []Condition
	Forbids  []Condition
	Rank     int
}

// #endregion rule

// #region thresholds
// Thresholds are the enter/exit pairs of the three guards.
type Thresholds struct {
	CautionEnter   float64 `yaml:"caution_enter"`
	CautionExit    float64 `yaml:"caution_exit"`
	MomentumEnter  float64 `yaml:"momentum_enter"`
	MomentumExit   float64 `yaml:"momentum_exit"`
	DepletionEnter float64 `yaml:"depletion_enter"`
	DepletionExit  float64 `yaml:"depletion_exit"`
}

// DefaultThresholds returns the hysteresis bands used unless configured otherwise.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CautionEnter:   0.80,
		CautionExit:    0.60,
		MomentumEnter:  0.75,
		MomentumExit:   0.55,
		DepletionEnter: 0.20,
		DepletionExit:  0.30,
	}
}

// Guards expands the thresholds into the guard table.
func (t Thresholds) Guards() []Guard {
	return []Guard{
		{Condition: CondCaution, Axis: hormone.AxisCortisol, Rising: true, Enter: t.CautionEnter, Exit: t.CautionExit},
		{Condition: CondDepletion, Axis: hormone.AxisEnergy, Rising: false, Enter: t.DepletionEnter, Exit: t.DepletionExit},
		{Condition: CondMomentum, Axis: hormone.AxisDopamine, Rising: true, Enter: t.MomentumEnter, Exit: t.MomentumExit},
	}
}

// Validate requires every exit threshold to sit on the permissive side of its enter
// threshold; a zero-width band would reintroduce chatter.
func (t Thresholds) Validate() error {
	for _, g := range t.Guards() {
		if g.Rising && !(g.Exit < g.Enter) {
			return fault.Configf("regime", "%s: exit %.4f must be below enter %.4f", g.Condition, g.Exit, g.Enter)
		}
		if !g.Rising && !(g.Exit > g.Enter) {
			return fault.Configf("regime", "%s: exit %.4f must be above enter %.4f", g.Condition, g.Exit, g.Enter)
		}
	}
	return nil
}

// #endregion thresholds

// #region transition
// Transition describes one classification step.
type Transition struct {
	From       Regime
	To         Regime
	Conditions []Condition // conditions active after evaluation
}

// Changed reports whether the regime flipped.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// #endregion transition
