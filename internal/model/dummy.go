package model

import (
	"context"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

// #region dummy
const (
	dummyRead   = `{"type":"tool_call","tool":"browser.read","args":{}}`
	dummyFind   = `{"type":"tool_call","tool":"browser.find","args":{"query":"target"}}`
	dummyAnswer = `{"type":"final_answer","action":"retrieve","status":"SUCCESS","results":["ok"],"error_details":null}`
)

// Dummy is a deterministic model for smoke tests: two reads, two finds, then a
// successful final answer. A request forcing the final-answer intent is answered
// immediately.
type Dummy struct {
	calls int
}

func NewDummy() *Dummy {
	return &Dummy{}
}

func (d *Dummy) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, fault.New(fault.ClassCancelled, "model.generate", err)
	}
	usage := Usage{PromptTokens: 50, CompletionTokens: 30, TotalTokens: 80}
	if req.Intent == "final_answer" {
		return Response{Text: dummyAnswer, Usage: usage}, nil
	}

	d.calls++
	text := dummyAnswer
	switch {
	case d.calls < 3:
		text = dummyRead
	case d.calls < 5:
		text = dummyFind
	}
	return Response{Text: text, Usage: usage}, nil
}

// #endregion dummy
