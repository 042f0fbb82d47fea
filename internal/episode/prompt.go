package episode

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/hormone-harness/internal/control"
	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
)

// #region prompts
const baseSystem = "You are a careful web navigation agent.\n" +
	"You must be grounded in the provided observation.\n" +
	"At each step, output ONLY a JSON object matching the required schema.\n"

func systemPrompt(b control.Bundle) string {
	return strings.TrimSpace(baseSystem) + "\n\n" + strings.TrimSpace(b.SystemModifier)
}

// stepPrompt renders the user turn. forced is the intent the harness requires, or "".
func stepPrompt(obs env.Observation, b control.Bundle, forced schema.Kind, toolCallsLeft int) string {
	var sb strings.Builder
	sb.WriteString("You are controlling a web browser via tools.\n")
	sb.WriteString("Given the OBSERVATION and GOAL, output EXACTLY ONE JSON object.\n")
	sb.WriteString("No markdown. No extra keys. No commentary.\n\n")
	fmt.Fprintf(&sb, "GOAL:\n%s\n\nOBSERVATION:\n%s\n", obs.Goal, obs.Text)
	if len(obs.Warnings) > 0 {
		fmt.Fprintf(&sb, "WARNINGS:\n%s\n", strings.Join(obs.Warnings, "\n"))
	}
	if b.ToolAllowlist != nil {
		fmt.Fprintf(&sb, "ALLOWED_TOOLS:\n%s\n", strings.Join(b.ToolAllowlist, "\n"))
	}
	if !b.Initiative {
		sb.WriteString("Take one action at a time. Do not propose multi-step plans.\n")
	}
	switch forced {
	case schema.KindFinalAnswer:
		sb.WriteString("\nThis is the last step. Reply with a final_answer object now.\n")
	default:
		fmt.Fprintf(&sb, "\nTool calls remaining: %d. Reply with a tool_call or a final_answer object.\n", toolCallsLeft)
		if toolCallsLeft == 0 {
			sb.WriteString("The tool budget is spent. Answer now unless one more call is essential.\n")
		}
	}
	return sb.String()
}

// #endregion prompts
