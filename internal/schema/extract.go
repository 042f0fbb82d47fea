package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// #region extract
var (
	fenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")
	objectRe = regexp.MustCompile(`(?s)(\{.*\})`)
	arrayRe  = regexp.MustCompile(`(?s)(\[.*\])`)
)

// ExtractCandidate pulls the most plausible JSON text out of model output:
// fenced content first, then the widest {...} span, then the widest [...] span.
// Falls back to the trimmed text.
func ExtractCandidate(text string) string {
	t := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(t); m != nil {
		t = strings.TrimSpace(m[1])
	}
	if m := objectRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := arrayRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	return t
}

// #endregion extract

// #region repair-prompt
// RepairPrompt asks the model to resend a single conforming object. An empty
// kind means the intent itself was unreadable, so both kinds are offered.
func RepairPrompt(kind Kind, validationErr, raw string) string {
	p := fmt.Sprintf("You returned invalid JSON for schema '%s'.\n"+
		"Validation error: %s\n"+
		"Your previous output was:\n%s\n\n"+
		"Return ONLY a single JSON object that conforms to the required schema. "+
		"Do not include any extra keys, commentary, or markdown fences.",
		kind.Title(), validationErr, raw)
	if kind == "" {
		p += fmt.Sprintf("\nSet %q to %q or %q.", IntentField, KindToolCall, KindFinalAnswer)
	}
	return p
}

// #endregion repair-prompt
