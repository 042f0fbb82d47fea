package model

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

// #region scripted
// Scripted returns queued responses in order and records every request it saw.
// Running past the end of the queue is a model error.
type Scripted struct {
	responses []Response
	Requests  []Request
}

// NewScripted queues texts with a fixed per-call usage.
func NewScripted(usage Usage, texts ...string) *Scripted {
	s := &Scripted{responses: make([]Response, len(texts))}
	for i, t := range texts {
		s.responses[i] = Response{Text: t, Usage: usage}
	}
	return s
}

func (s *Scripted) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, fault.New(fault.ClassCancelled, "model.generate", err)
	}
	s.Requests = append(s.Requests, req)
	if len(s.responses) == 0 {
		return Response{}, fault.New(fault.ClassModel, "model.generate", errors.New("script exhausted"))
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

// #endregion scripted
