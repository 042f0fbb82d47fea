package control

import (
	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
)

// #region mapper
// Mapper is the total, pure regime → bundle function. The table is copied at
// construction and never exposed, so Map has no hidden state.
type Mapper struct {
	table Table
}

// NewMapper validates that every regime has a well-formed bundle.
// A missing or malformed entry is a configuration error.
func NewMapper(t Table) (*Mapper, error) {
	own := make(Table, len(t))
	for r, b := range t {
		if !r.IsValid() {
			return nil, fault.Configf("control", "bundle for unknown regime %q", r)
		}
		own[r] = b.clone()
	}
	for _, r := range regime.All() {
		b, ok := own[r]
		if !ok {
			return nil, fault.Configf("control", "regime %q has no bundle", r)
		}
		if err := validateBundle(r, b); err != nil {
			return nil, err
		}
	}
	return &Mapper{table: own}, nil
}

// Map returns the bundle of r. Every regime validated at construction is present;
// an unknown regime returns the zero bundle and false.
func (m *Mapper) Map(r regime.Regime) (Bundle, bool) {
	b, ok := m.table[r]
	if !ok {
		return Bundle{}, false
	}
	return b.clone(), true
}

// #endregion mapper

// #region validation
func validateBundle(r regime.Regime, b Bundle) error {
	if b.Temperature < 0 || b.Temperature > 2 {
		return fault.Configf("control", "regime %q: temperature %.3f outside [0, 2]", r, b.Temperature)
	}
	if b.MaxToolCalls < 0 {
		return fault.Configf("control", "regime %q: max_tool_calls must be non-negative", r)
	}
	if b.RiskThreshold < 0 || b.RiskThreshold > 1 {
		return fault.Configf("control", "regime %q: risk_threshold %.3f outside [0, 1]", r, b.RiskThreshold)
	}
	if b.MaxTokens <= 0 {
		return fault.Configf("control", "regime %q: max_tokens must be positive", r)
	}
	return nil
}

// #endregion validation
