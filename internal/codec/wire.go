package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/hormone-harness/internal/model"
)

// #region constants
const (
	serviceName    = "hormone.v1.ModelService"
	generateMethod = "/" + serviceName + "/Generate"
)

// #endregion constants

// #region encode
// encodeRequest flattens a model request into a protobuf Struct.
func encodeRequest(req model.Request) (*structpb.Struct, error) {
	allow := make([]any, len(req.ToolAllowlist))
	for i, t := range req.ToolAllowlist {
		allow[i] = t
	}
	fields := map[string]any{
		"system":         req.System,
		"user":           req.User,
		"temperature":    req.Temperature,
		"max_tokens":     float64(req.MaxTokens),
		"risk_threshold": req.RiskThreshold,
		"initiative":     req.Initiative,
		"max_tool_calls": float64(req.MaxToolCalls),
		"tool_allowlist": allow,
		"intent":         req.Intent,
	}
	if len(req.JSONSchema) > 0 {
		fields["json_schema"] = string(req.JSONSchema)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return s, nil
}

func encodeResponse(resp model.Response) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"text": resp.Text,
		"usage": map[string]any{
			"prompt_tokens":     float64(resp.Usage.PromptTokens),
			"completion_tokens": float64(resp.Usage.CompletionTokens),
			"total_tokens":      float64(resp.Usage.TotalTokens),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}

// #endregion encode

// #region decode
func decodeRequest(s *structpb.Struct) model.Request {
	f := s.GetFields()
	req := model.Request{
		System:        f["system"].GetStringValue(),
		User:          f["user"].GetStringValue(),
		Temperature:   f["temperature"].GetNumberValue(),
		MaxTokens:     int(f["max_tokens"].GetNumberValue()),
		RiskThreshold: f["risk_threshold"].GetNumberValue(),
		Initiative:    f["initiative"].GetBoolValue(),
		MaxToolCalls:  int(f["max_tool_calls"].GetNumberValue()),
		Intent:        f["intent"].GetStringValue(),
	}
	for _, v := range f["tool_allowlist"].GetListValue().GetValues() {
		req.ToolAllowlist = append(req.ToolAllowlist, v.GetStringValue())
	}
	if raw := f["json_schema"].GetStringValue(); raw != "" {
		req.JSONSchema = json.RawMessage(raw)
	}
	return req
}

func decodeResponse(s *structpb.Struct) model.Response {
	f := s.GetFields()
	u := f["usage"].GetStructValue().GetFields()
	return model.Response{
		Text: f["text"].GetStringValue(),
		Usage: model.Usage{
			PromptTokens:     int(u["prompt_tokens"].GetNumberValue()),
			CompletionTokens: int(u["completion_tokens"].GetNumberValue()),
			TotalTokens:      int(u["total_tokens"].GetNumberValue()),
		},
	}
}

// #endregion decode
