package signals

import (
	"math"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
)

// #region producer

// Producer computes normalised outcome features from raw step events.
type Producer struct {
	config ProducerConfig
}

// NewProducer validates config and creates a Producer.
func NewProducer(config ProducerConfig) (*Producer, error) {
	for name, w := range map[string]float64{
		"w_warning":      config.WarningWeight,
		"w_risk_event":   config.RiskEventWeight,
		"w_tool_error":   config.ToolErrorWeight,
		"w_policy_block": config.PolicyBlockWeight,
		"k_token_cost":   config.TokenCostScale,
	} {
		if w < 0 || math.IsNaN(w) {
			return nil, fault.Configf("signals", "%s must be non-negative, got %v", name, w)
		}
	}
	if config.TokenBudget < 0 {
		return nil, fault.Configf("signals", "token_budget must be non-negative, got %d", config.TokenBudget)
	}
	return &Producer{config: config}, nil
}

// #endregion producer

// #region produce

// Produce turns one step's events into the outcome consumed by the hormone update.
func (p *Producer) Produce(input ProduceInput) hormone.Outcome {
	return hormone.Outcome{
		Success:  input.Success,
		Failed:   input.Failed,
		Progress: clamp(input.Progress),
		Risk:     p.riskSignal(input),
		Cost:     p.costSignal(input),
	}
}

// #endregion produce

// #region risk

// riskSignal is a weighted event count saturated into [0, 1): 1 - exp(-x).
// Each additional event raises risk with diminishing returns.
func (p *Producer) riskSignal(input ProduceInput) float64 {
	raw := p.config.WarningWeight*float64(max(input.Warnings, 0)) +
		p.config.RiskEventWeight*float64(max(input.RiskEvents, 0)) +
		p.config.ToolErrorWeight*float64(max(input.ToolErrors, 0)) +
		p.config.PolicyBlockWeight*float64(max(input.PolicyBlocks, 0))
	return clamp(1 - math.Exp(-raw))
}

// #endregion risk

// #region cost

// costSignal normalises token spend by the budget. A zero budget disables cost.
func (p *Producer) costSignal(input ProduceInput) float64 {
	if p.config.TokenBudget <= 0 || input.Tokens <= 0 {
		return 0
	}
	return clamp(p.config.TokenCostScale * float64(input.Tokens) / float64(p.config.TokenBudget))
}

// #endregion cost

// #region helpers

// clamp restricts v to [0, 1]; NaN maps to 0.
func clamp(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
