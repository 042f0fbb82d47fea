package regime

import (
	"sort"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
)

// #region rules
// DefaultRules is the transition table. A regime is reachable when all of its required
// conditions hold and none of its forbidden ones do; the highest rank wins.
func DefaultRules() []Rule {
	return []Rule{
		{Regime: DefensiveBudget, Requires: []Condition{CondCaution, CondDepletion}, Rank: 4},
		{Regime: Defensive, Requires: []Condition{CondCaution}, Rank: 3},
		{Regime: BudgetConstrained, Requires: []Condition{CondDepletion}, Rank: 2},
		{Regime: Exploratory, Requires: []Condition{CondMomentum}, Forbids: []Condition{CondCaution, CondDepletion}, Rank: 1},
		{Regime: Nominal, Rank: 0},
	}
}

// #endregion rules

// #region selector
// Selector is a pure hysteretic classifier. It holds no per-episode state and may be
// shared by concurrent episodes.
type Selector struct {
	guards []Guard
	rules  []Rule // sorted by descending rank
	byName map[Regime]Rule
}

// NewSelector validates the thresholds and the rule table.
func NewSelector(t Thresholds, rules []Rule) (*Selector, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	byName := make(map[Regime]Rule, len(sorted))
	ranks := make(map[int]Regime, len(sorted))
	hasFallback := false
	for _, r := range sorted {
		if !r.Regime.IsValid() || r.Regime == Baseline {
			return nil, fault.Configf("regime", "rule for unknown or reserved regime %q", r.Regime)
		}
		if _, dup := byName[r.Regime]; dup {
			return nil, fault.Configf("regime", "duplicate rule for regime %q", r.Regime)
		}
		if other, dup := ranks[r.Rank]; dup {
			return nil, fault.Configf("regime", "regimes %q and %q share rank %d", other, r.Regime, r.Rank)
		}
		if len(r.Requires) == 0 && len(r.Forbids) == 0 {
			hasFallback = true
		}
		byName[r.Regime] = r
		ranks[r.Rank] = r.Regime
	}
	if !hasFallback {
		return nil, fault.Configf("regime", "rule table has no unconditional fallback regime")
	}
	if _, ok := byName[Nominal]; !ok {
		return nil, fault.Configf("regime", "rule table has no rule for %q", Nominal)
	}

	return &Selector{guards: t.Guards(), rules: sorted, byName: byName}, nil
}

// Classify returns the regime for vector v given the previously active regime.
func (s *Selector) Classify(v hormone.Vector, prev Regime) Regime {
	return s.Transition(v, prev).To
}

// Transition evaluates every guard, then picks the most conservative satisfied rule.
// A guard whose condition is required by prev is tested against its exit threshold,
// otherwise against its enter threshold.
func (s *Selector) Transition(v hormone.Vector, prev Regime) Transition {
	held := make(map[Condition]bool)
	if r, ok := s.byName[prev]; ok {
		for _, c := range r.Requires {
			held[c] = true
		}
	}

	active := make(map[Condition]bool, len(s.guards))
	var activeList []Condition
	for _, g := range s.guards {
		if g.active(v.Get(g.Axis), held[g.Condition]) {
			active[g.Condition] = true
			activeList = append(activeList, g.Condition)
		}
	}

	to := Nominal
	for _, r := range s.rules {
		if r.satisfied(active) {
			to = r.Regime
			break
		}
	}

	return Transition{From: prev, To: to, Conditions: activeList}
}

// #endregion selector

// #region machine
// Machine tracks the active regime of one episode. It starts at Nominal and has
// no terminal state.
type Machine struct {
	selector *Selector
	current  Regime
}

// NewMachine creates a machine at Nominal.
func NewMachine(s *Selector) *Machine {
	return &Machine{selector: s, current: Nominal}
}

// Current returns the active regime.
func (m *Machine) Current() Regime {
	return m.current
}

// Step classifies v against the active regime and makes the result active.
func (m *Machine) Step(v hormone.Vector) Transition {
	t := m.selector.Transition(v, m.current)
	m.current = t.To
	return t
}

// Reset re-initialises the machine for a new episode.
func (m *Machine) Reset() {
	m.current = Nominal
}

// #endregion machine

// #region helpers
func (g Guard) active(x float64, held bool) bool {
	threshold := g.Enter
	if held {
		threshold = g.Exit
	}
	if g.Rising {
		return x >= threshold
	}
	return x <= threshold
}

func (r Rule) satisfied(active map[Condition]bool) bool {
	for _, c := range r.Requires {
		if !active[c] {
			return false
		}
	}
	for _, c := range r.Forbids {
		if active[c] {
			return false
		}
	}
	return true
}

// #endregion helpers
