package hormone

// #region result
// Result bundles the next vector with per-axis telemetry from one update.
type Result struct {
	Vector  Vector
	Decay   Vector // signed change from decay toward baseline
	Delta   Vector // signed change from outcome-driven increments, after clamping
	Clamped []Axis // axes that hit a bound this step
}

// #endregion result

// #region update-function
// Update is a pure function computing the next vector from the current one and an outcome.
// Order per axis: decay toward baseline, outcome increment, clamp to bounds.
func Update(old Vector, o Outcome, config Config) Result {
	reward := clampUnit((boolUnit(o.Success) + clampUnit(o.Progress)) / 2)
	risk := clampUnit(o.Risk)
	cost := clampUnit(o.Cost)

	// 1. Decay pass
	decayed := Vector{
		Dopamine: decay(old.Dopamine, config.Dopamine),
		Cortisol: decay(old.Cortisol, config.Cortisol),
		Energy:   decay(old.Energy, config.Energy),
	}

	// 2. Delta pass: saturating increments scaled by remaining headroom
	d := decayed.Dopamine
	dc := config.Dopamine
	d += config.RewardGain * (dc.Max - d) * reward
	if o.Failed {
		d -= config.SetbackGain * (d - dc.Min)
	}

	c := decayed.Cortisol
	cc := config.Cortisol
	c += config.RiskGain * (cc.Max - c) * risk
	if o.Failed {
		c += config.FailureGain * (cc.Max - c)
	}
	if o.Success {
		c -= config.ReliefGain * (c - cc.Min)
	}

	ec := config.Energy
	e := decayed.Energy - config.CostGain*cost*(ec.Max-ec.Min)

	// 3. Clamp
	next := Vector{
		Dopamine: clamp(d, dc),
		Cortisol: clamp(c, cc),
		Energy:   clamp(e, ec),
	}

	var clamped []Axis
	if next.Dopamine != d {
		clamped = append(clamped, AxisDopamine)
	}
	if next.Cortisol != c {
		clamped = append(clamped, AxisCortisol)
	}
	if next.Energy != e {
		clamped = append(clamped, AxisEnergy)
	}

	return Result{
		Vector: next,
		Decay: Vector{
			Dopamine: decayed.Dopamine - old.Dopamine,
			Cortisol: decayed.Cortisol - old.Cortisol,
			Energy:   decayed.Energy - old.Energy,
		},
		Delta: Vector{
			Dopamine: next.Dopamine - decayed.Dopamine,
			Cortisol: next.Cortisol - decayed.Cortisol,
			Energy:   next.Energy - decayed.Energy,
		},
		Clamped: clamped,
	}
}

// #endregion update-function

// #region state
// State owns the hormone vector of one episode. Not safe for concurrent use;
// an episode drives it from a single goroutine.
type State struct {
	config  Config
	current Vector
	last    Result
}

// NewState creates a state positioned at the configured initial vector.
func NewState(config Config) *State {
	return &State{config: config, current: config.InitialVector()}
}

// Current returns the present vector.
func (s *State) Current() Vector {
	return s.current
}

// Last returns the telemetry of the most recent update.
func (s *State) Last() Result {
	return s.last
}

// Update applies one outcome and returns the new vector. All axes change together.
func (s *State) Update(o Outcome) Vector {
	s.last = Update(s.current, o, s.config)
	s.current = s.last.Vector
	return s.current
}

// Reset restores the initial vector at the start of a new episode.
func (s *State) Reset() {
	s.current = s.config.InitialVector()
	s.last = Result{}
}

// InBounds reports whether every axis of v lies within its declared bounds.
func (c Config) InBounds(v Vector) bool {
	for _, a := range Axes() {
		ac := c.Axis(a)
		x := v.Get(a)
		if x < ac.Min || x > ac.Max {
			return false
		}
	}
	return true
}

// #endregion state

// #region helpers
func decay(v float64, ac AxisConfig) float64 {
	return ac.Baseline + (v-ac.Baseline)*ac.Retention
}

func clamp(v float64, ac AxisConfig) float64 {
	if !(v >= ac.Min) { // also catches NaN
		return ac.Min
	}
	if v > ac.Max {
		return ac.Max
	}
	return v
}

func clampUnit(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func boolUnit(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
