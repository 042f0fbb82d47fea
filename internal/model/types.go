package model

import (
	"context"
	"encoding/json"
)

// #region types
// Request is a provider-agnostic generation request carrying the active control bundle.
type Request struct {
	System        string          `json:"system"`
	User          string          `json:"user"`
	Temperature   float64         `json:"temperature"`
	MaxTokens     int             `json:"max_tokens"`
	RiskThreshold float64         `json:"risk_threshold"`
	Initiative    bool            `json:"initiative"`
	MaxToolCalls  int             `json:"max_tool_calls"` // tool calls left in the regime budget
	ToolAllowlist []string        `json:"tool_allowlist,omitempty"`
	Intent        string          `json:"intent,omitempty"`      // "tool_call", "final_answer" or "" for either
	JSONSchema    json.RawMessage `json:"json_schema,omitempty"` // for providers with schema-native JSON mode
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Response is the raw model output. Text is untrusted until validated.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// #endregion types

// #region model
// Model generates one response per call.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Factory builds a fresh Model per episode. Stateless models may return a shared instance.
type Factory func() Model

// #endregion model
