package schema

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
	"cuelang.org/go/encoding/jsonschema"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

//go:embed schemas/*.schema.json
var embedded embed.FS

// #region guard
// Guard validates payloads against the tool-call and final-answer schemas.
// A cue.Context is not safe for concurrent use, so every evaluation holds mu.
type Guard struct {
	mu         sync.Mutex
	cuectx     *cue.Context
	schemas    map[Kind]cue.Value
	documents  map[Kind][]byte
	maxRepairs int
	logger     *slog.Logger
}

// NewGuard loads and compiles both schema documents. Unreadable or malformed
// schemas and a non-positive repair bound are configuration errors.
func NewGuard(config Config, logger *slog.Logger) (*Guard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxRepairs < 1 {
		return nil, fault.Configf("schema", "max_repairs must be positive, got %d", config.MaxRepairs)
	}

	g := &Guard{
		cuectx:     cuecontext.New(),
		schemas:    make(map[Kind]cue.Value, 2),
		documents:  make(map[Kind][]byte, 3),
		maxRepairs: config.MaxRepairs,
		logger:     logger.With("component", "schema"),
	}
	paths := map[Kind]string{
		KindToolCall:    config.ToolCallPath,
		KindFinalAnswer: config.FinalAnswerPath,
	}
	for _, kind := range Kinds() {
		doc, err := readDocument(kind, paths[kind])
		if err != nil {
			return nil, err
		}
		v, err := g.compile(kind, doc)
		if err != nil {
			return nil, err
		}
		g.schemas[kind] = v
		g.documents[kind] = doc
	}
	either, err := json.Marshal(map[string][]json.RawMessage{
		"oneOf": {g.documents[KindToolCall], g.documents[KindFinalAnswer]},
	})
	if err != nil {
		return nil, fault.Configf("schema", "combine schemas: %w", err)
	}
	g.documents[""] = either
	return g, nil
}

func readDocument(kind Kind, path string) ([]byte, error) {
	if path == "" {
		doc, err := embedded.ReadFile("schemas/" + string(kind) + ".schema.json")
		if err != nil {
			return nil, fault.Configf("schema", "read embedded %s schema: %w", kind, err)
		}
		return doc, nil
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Configf("schema", "read %s schema: %w", kind, err)
	}
	return doc, nil
}

// compile turns a Draft-7 JSON Schema document into a CUE constraint.
func (g *Guard) compile(kind Kind, doc []byte) (cue.Value, error) {
	expr, err := cuejson.Extract(string(kind)+".schema.json", doc)
	if err != nil {
		return cue.Value{}, fault.Configf("schema", "parse %s schema: %w", kind, err)
	}
	raw := g.cuectx.BuildExpr(expr)
	if err := raw.Err(); err != nil {
		return cue.Value{}, fault.Configf("schema", "build %s schema: %w", kind, err)
	}
	file, err := jsonschema.Extract(raw, &jsonschema.Config{
		DefaultVersion: jsonschema.VersionDraft7,
	})
	if err != nil {
		return cue.Value{}, fault.Configf("schema", "import %s schema: %w", kind, err)
	}
	v := g.cuectx.BuildFile(file)
	if err := v.Err(); err != nil {
		return cue.Value{}, fault.Configf("schema", "compile %s schema: %w", kind, err)
	}
	return v, nil
}

// MaxRepairs is the repair bound of Enforce.
func (g *Guard) MaxRepairs() int {
	return g.maxRepairs
}

// Document returns a copy of the JSON Schema text for kind, or nil. The empty
// kind yields a oneOf document accepting either payload.
func (g *Guard) Document(kind Kind) []byte {
	doc, ok := g.documents[kind]
	if !ok {
		return nil
	}
	return slices.Clone(doc)
}

// #endregion guard

// #region validate
// Validate checks a JSON payload against the schema of kind.
// Failures are validation-class errors wrapping a *ValidationError.
func (g *Guard) Validate(payload []byte, kind Kind) error {
	schema, ok := g.schemas[kind]
	if !ok {
		return invalid(kind, "<root>", fmt.Sprintf("unknown schema kind %q", kind))
	}
	expr, err := cuejson.Extract("payload.json", payload)
	if err != nil {
		return invalid(kind, "<root>", fmt.Sprintf("failed to parse JSON: %v", err))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	data := g.cuectx.BuildExpr(expr)
	if err := data.Err(); err != nil {
		return invalid(kind, "<root>", err.Error())
	}
	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		path, msg := firstError(err)
		return invalid(kind, path, msg)
	}
	return nil
}

// firstError picks a stable first violation so repair prompts are reproducible.
func firstError(err error) (string, string) {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return "<root>", err.Error()
	}
	type violation struct{ path, msg string }
	vs := make([]violation, 0, len(list))
	for _, e := range list {
		path := strings.Join(e.Path(), ".")
		if path == "" {
			path = "<root>"
		}
		format, args := e.Msg()
		vs = append(vs, violation{path: path, msg: fmt.Sprintf(format, args...)})
	}
	slices.SortFunc(vs, func(a, b violation) int {
		if c := strings.Compare(a.path, b.path); c != 0 {
			return c
		}
		return strings.Compare(a.msg, b.msg)
	})
	return vs[0].path, vs[0].msg
}

func invalid(kind Kind, path, msg string) error {
	return fault.New(fault.ClassValidation, "schema.validate", &ValidationError{Kind: kind, Path: path, Message: msg})
}

// describe renders a failure the way repair prompts quote it: "path: message".
func describe(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Path + ": " + ve.Message
	}
	return err.Error()
}

// #endregion validate

// #region check
// check extracts the candidate from raw, resolves the intended kind and validates.
// expect overrides the declared intent when non-empty.
func (g *Guard) check(raw string, expect Kind) (Kind, json.RawMessage, error) {
	cand := ExtractCandidate(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cand), &fields); err != nil {
		return expect, nil, invalid(expect, "<root>", fmt.Sprintf("failed to parse JSON object: %v", err))
	}
	if fields == nil {
		return expect, nil, invalid(expect, "<root>", "payload is not a JSON object")
	}

	kind := expect
	if kind == "" {
		var declared string
		_ = json.Unmarshal(fields[IntentField], &declared)
		kind = Kind(declared)
		if !kind.IsValid() {
			return "", nil, invalid("", IntentField,
				fmt.Sprintf("unknown intent %q, expected %q or %q", declared, KindToolCall, KindFinalAnswer))
		}
	}

	if err := g.Validate([]byte(cand), kind); err != nil {
		return kind, nil, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(cand)); err != nil {
		return kind, nil, invalid(kind, "<root>", err.Error())
	}
	return kind, json.RawMessage(buf.Bytes()), nil
}

// #endregion check

// #region enforce
// Enforce validates raw model output and, on failure, asks repairer for at most
// MaxRepairs corrected outputs. The returned Result never carries a payload that
// failed validation. A nil repairer disables repair.
func (g *Guard) Enforce(ctx context.Context, raw string, expect Kind, repairer Repairer) Result {
	var res Result

	current := raw
	kind, payload, verr := g.check(current, expect)
	res.Attempts = append(res.Attempts, attempt(0, false, current, kind, verr))
	lastInvalid := verr

	for n := 1; verr != nil && n <= g.maxRepairs; n++ {
		if repairer == nil || ctx.Err() != nil {
			break
		}
		g.logger.Warn("payload invalid, requesting repair",
			"kind", kind, "attempt", n, "error", describe(lastInvalid))

		target := kind
		if target == "" {
			target = expect
		}
		next, err := repairer.Repair(ctx, RepairRequest{
			Kind:    target,
			Prompt:  RepairPrompt(target, describe(lastInvalid), current),
			Error:   describe(lastInvalid),
			Raw:     current,
			Attempt: n,
		})
		if err != nil {
			verr = fault.New(fault.ClassModel, "schema.repair", err)
			res.Attempts = append(res.Attempts, attempt(n, true, "", target, verr))
			continue
		}

		current = next
		kind, payload, verr = g.check(current, expect)
		res.Attempts = append(res.Attempts, attempt(n, true, current, kind, verr))
		if verr != nil {
			lastInvalid = verr
		}
	}

	res.Kind = kind
	switch {
	case verr == nil:
		res.Status = StatusValid
		if len(res.Attempts) > 1 {
			res.Status = StatusRepaired
		}
		res.Payload = payload
	case ctx.Err() != nil:
		res.Status = StatusAborted
		res.Err = fault.New(fault.ClassCancelled, "schema.enforce", ctx.Err())
	default:
		res.Status = StatusExhausted
		res.Err = fault.New(fault.ClassRepairExhausted, "schema.enforce",
			fmt.Errorf("%d repair attempts: %w", res.Repairs(), lastInvalid))
		g.logger.Warn("repair exhausted", "kind", kind, "attempts", len(res.Attempts), "error", describe(lastInvalid))
	}
	return res
}

func attempt(index int, repair bool, raw string, kind Kind, err error) Attempt {
	a := Attempt{Index: index, Repair: repair, Raw: raw, Kind: kind, Valid: err == nil}
	if err != nil {
		a.Error = describe(err)
	}
	return a
}

// #endregion enforce
