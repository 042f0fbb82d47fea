package signals

// #region config

// ProducerConfig holds the weights that turn raw step events into outcome features.
type ProducerConfig struct {
	WarningWeight     float64 `yaml:"w_warning"`
	RiskEventWeight   float64 `yaml:"w_risk_event"`
	ToolErrorWeight   float64 `yaml:"w_tool_error"`
	PolicyBlockWeight float64 `yaml:"w_policy_block"` // guardrail block or disallowed tool
	TokenBudget       int     `yaml:"token_budget"`   // tokens that drain energy from 1 to 0
	TokenCostScale    float64 `yaml:"k_token_cost"`
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		WarningWeight:     0.10,
		RiskEventWeight:   0.15,
		ToolErrorWeight:   0.20,
		PolicyBlockWeight: 0.35,
		TokenBudget:       200_000,
		TokenCostScale:    1.0,
	}
}

// #endregion config

// #region input

// ProduceInput bundles the raw events of one step: the environment's verdict on the
// previous action, the observation's warnings and the tokens the step consumed.
type ProduceInput struct {
	Success      bool
	Failed       bool
	Progress     float64
	Warnings     int
	RiskEvents   int
	ToolErrors   int
	PolicyBlocks int
	Tokens       int
}

// #endregion input
