package control

import "github.com/danielpatrickdp/hormone-harness/internal/regime"

// #region bundle
// Bundle is the set of decision-time parameters derived from a regime.
type Bundle struct {
	Temperature    float64  `json:"temperature" yaml:"temperature"`
	MaxToolCalls   int      `json:"max_tool_calls" yaml:"max_tool_calls"`
	RiskThreshold  float64  `json:"risk_threshold" yaml:"risk_threshold"` // max risk the agent may accept
	Initiative     bool     `json:"initiative" yaml:"initiative"`         // may propose multi-step plans
	MaxTokens      int      `json:"max_tokens" yaml:"max_tokens"`
	ToolAllowlist  []string `json:"tool_allowlist" yaml:"tool_allowlist"` // nil = every tool allowed
	SystemModifier string   `json:"system_modifier" yaml:"system_modifier"`
}

// Allows reports whether tool may be called under this bundle.
func (b Bundle) Allows(tool string) bool {
	if b.ToolAllowlist == nil {
		return true
	}
	for _, t := range b.ToolAllowlist {
		if t == tool {
			return true
		}
	}
	return false
}

func (b Bundle) clone() Bundle {
	if b.ToolAllowlist != nil {
		list := make([]string, len(b.ToolAllowlist))
		copy(list, b.ToolAllowlist)
		b.ToolAllowlist = list
	}
	return b
}

// #endregion bundle

// #region table
// Table maps every regime to its bundle.
type Table map[regime.Regime]Bundle

func readOnlyTools() []string {
	return []string{"browser.goto", "browser.read", "browser.find", "browser.scroll"}
}

const (
	modNominal = "[MODE: nominal]\n" +
		"- Be helpful, grounded in observations, and follow the task.\n" +
		"- If uncertain, ask a brief clarifying question.\n"
	modExploratory = "[MODE: exploratory]\n" +
		"- Proactively explore options and recover from dead-ends.\n" +
		"- Keep actions grounded in the current observation.\n" +
		"- When multiple strategies exist, try the lowest-risk one first.\n"
	modDefensive = "[MODE: defensive]\n" +
		"- Prioritize safety, correctness, and permission boundaries.\n" +
		"- Do NOT attempt actions that could violate policies or account security.\n" +
		"- When uncertain, ask for confirmation or provide a safe alternative.\n" +
		"- Avoid unnecessary tool use.\n"
	modBudget = "[MODE: low_resource]\n" +
		"- Minimize tokens. Prefer short, high-signal responses.\n" +
		"- Use tools only if essential.\n"
	modBaseline = "[MODE: baseline]\n" +
		"- Follow the goal.\n" +
		"- Stay grounded.\n"
)

// DefaultTable returns the built-in regime table. Baseline is the fixed bundle of
// controller-off runs.
func DefaultTable() Table {
	return Table{
		regime.Nominal: {
			Temperature:    0.5,
			MaxToolCalls:   12,
			RiskThreshold:  0.5,
			Initiative:     true,
			MaxTokens:      800,
			SystemModifier: modNominal,
		},
		regime.Exploratory: {
			Temperature:    0.8,
			MaxToolCalls:   16,
			RiskThreshold:  0.7,
			Initiative:     true,
			MaxTokens:      900,
			SystemModifier: modExploratory,
		},
		regime.Defensive: {
			Temperature:    0.1,
			MaxToolCalls:   6,
			RiskThreshold:  0.2,
			Initiative:     false,
			MaxTokens:      400,
			ToolAllowlist:  readOnlyTools(),
			SystemModifier: modDefensive,
		},
		regime.BudgetConstrained: {
			Temperature:    0.4,
			MaxToolCalls:   4,
			RiskThreshold:  0.4,
			Initiative:     false,
			MaxTokens:      250,
			SystemModifier: modNominal + "\n" + modBudget,
		},
		regime.DefensiveBudget: {
			Temperature:    0.1,
			MaxToolCalls:   3,
			RiskThreshold:  0.1,
			Initiative:     false,
			MaxTokens:      250,
			ToolAllowlist:  readOnlyTools(),
			SystemModifier: modDefensive + "\n" + modBudget,
		},
		regime.Baseline: {
			Temperature:    0.5,
			MaxToolCalls:   12,
			RiskThreshold:  0.5,
			Initiative:     true,
			MaxTokens:      800,
			SystemModifier: modBaseline,
		},
	}
}

// #endregion table
