package model

import (
	"context"
	"strings"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

func TestDummySequence(t *testing.T) {
	d := NewDummy()
	want := []string{"browser.read", "browser.read", "browser.find", "browser.find", "final_answer"}
	for i, w := range want {
		resp, err := d.Generate(context.Background(), Request{})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !strings.Contains(resp.Text, w) {
			t.Fatalf("call %d: expected %s in %s", i, w, resp.Text)
		}
		if resp.Usage.TotalTokens != 80 {
			t.Fatalf("call %d: expected 80 tokens, got %d", i, resp.Usage.TotalTokens)
		}
	}
}

func TestDummyForcedFinal(t *testing.T) {
	resp, err := NewDummy().Generate(context.Background(), Request{Intent: "final_answer"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(resp.Text, `"final_answer"`) {
		t.Fatalf("expected final answer, got %s", resp.Text)
	}
}

func TestScriptedExhaustion(t *testing.T) {
	s := NewScripted(Usage{TotalTokens: 10}, "a")
	if _, err := s.Generate(context.Background(), Request{User: "q"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := s.Generate(context.Background(), Request{})
	if !fault.Is(err, fault.ClassModel) {
		t.Fatalf("expected model error, got %v", err)
	}
	if len(s.Requests) != 2 || s.Requests[0].User != "q" {
		t.Fatalf("requests not recorded: %+v", s.Requests)
	}
}

func TestUsageAdd(t *testing.T) {
	got := Usage{1, 2, 3}.Add(Usage{10, 20, 30})
	if got != (Usage{11, 22, 33}) {
		t.Fatalf("unexpected sum %+v", got)
	}
}
