package episode

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
)

func TestStepPromptListsAllowedTools(t *testing.T) {
	b := control.DefaultTable()[regime.Defensive]
	obs := env.Observation{Goal: "find the price", Text: "page", Warnings: []string{"spam_warning"}}

	p := stepPrompt(obs, b, "", 4)
	for _, want := range []string{"GOAL:\nfind the price", "OBSERVATION:\npage", "ALLOWED_TOOLS:\nbrowser.goto\n", "WARNINGS:\nspam_warning", "Tool calls remaining: 4"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	if !strings.Contains(p, "Do not propose multi-step plans") {
		t.Fatal("defensive prompt should withhold initiative")
	}
}

func TestStepPromptForcedFinal(t *testing.T) {
	b := control.DefaultTable()[regime.Nominal]
	p := stepPrompt(env.Observation{Goal: "g", Text: "t"}, b, schema.KindFinalAnswer, 0)
	if strings.Contains(p, "ALLOWED_TOOLS") || !strings.Contains(p, "final_answer object now") {
		t.Fatalf("unexpected forced prompt:\n%s", p)
	}
}

func TestStepPromptStatesSpentBudget(t *testing.T) {
	b := control.DefaultTable()[regime.Nominal]
	spent := stepPrompt(env.Observation{Goal: "g", Text: "t"}, b, "", 0)
	if !strings.Contains(spent, "Tool calls remaining: 0") || !strings.Contains(spent, "tool budget is spent") {
		t.Fatalf("spent budget not stated:\n%s", spent)
	}
	if p := stepPrompt(env.Observation{Goal: "g", Text: "t"}, b, "", 2); strings.Contains(p, "tool budget is spent") {
		t.Fatalf("budget reported spent with calls left:\n%s", p)
	}
}

func TestSystemPromptAppendsModifier(t *testing.T) {
	s := systemPrompt(control.DefaultTable()[regime.Baseline])
	if !strings.HasPrefix(s, "You are a careful web navigation agent.") || !strings.HasSuffix(s, "- Stay grounded.") {
		t.Fatalf("unexpected system prompt %q", s)
	}
}
