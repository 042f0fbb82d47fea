package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hormone-harness/internal/env"
	"github.com/danielpatrickdp/hormone-harness/internal/hormone"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay scenario.
type Fixture struct {
	Description     string                  `json:"description"`
	Controller      string                  `json:"controller"` // "on" (default) or "off"
	Steps           []FixtureStep           `json:"steps"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureStep is a normalised outcome or a raw environment outcome.
type FixtureStep struct {
	StepID  string           `json:"step_id"`
	Outcome *hormone.Outcome `json:"outcome,omitempty"`
	Raw     *env.Outcome     `json:"raw,omitempty"`
	Tokens  int              `json:"tokens,omitempty"`
}

// FixtureExpectedResult captures the expected regime after each step.
type FixtureExpectedResult struct {
	StepID string        `json:"step_id"`
	Regime regime.Regime `json:"regime"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Controller == "" {
		f.Controller = record.ControllerOn
	}
	for i, s := range f.Steps {
		if (s.Outcome == nil) == (s.Raw == nil) {
			return nil, fmt.Errorf("fixture %s: step %d needs exactly one of outcome and raw", path, i)
		}
	}
	return &f, nil
}

// ToSteps converts the fixture steps to replay steps.
func (f *Fixture) ToSteps() []Step {
	steps := make([]Step, len(f.Steps))
	for i, s := range f.Steps {
		steps[i] = Step{StepID: s.StepID, Outcome: s.Outcome, Raw: s.Raw, Tokens: s.Tokens}
	}
	return steps
}

// Mismatch is one step whose regime differs from the fixture.
type Mismatch struct {
	Index    int
	StepID   string
	Expected regime.Regime
	Actual   regime.Regime
}

func (m Mismatch) String() string {
	return fmt.Sprintf("step %d (%s): expected %s, got %s", m.Index, m.StepID, m.Expected, m.Actual)
}

// Check compares results against the expected regimes. A length difference is
// reported as mismatches against the empty regime.
func (f *Fixture) Check(results []ReplayResult) []Mismatch {
	var out []Mismatch
	n := max(len(results), len(f.ExpectedResults))
	for i := 0; i < n; i++ {
		var m Mismatch
		m.Index = i
		if i < len(f.ExpectedResults) {
			m.StepID = f.ExpectedResults[i].StepID
			m.Expected = f.ExpectedResults[i].Regime
		}
		if i < len(results) {
			m.StepID = results[i].StepID
			m.Actual = results[i].RegimeAfter
		}
		if m.Expected != m.Actual {
			out = append(out, m)
		}
	}
	return out
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromRecords builds a fixture from a recorded run. Each record with an
// outcome becomes one step, expected to land in the regime the run recorded.
func FixtureFromRecords(recs []record.StepRecord, description string) *Fixture {
	f := &Fixture{Description: description, Controller: record.ControllerOn}
	if len(recs) > 0 && recs[0].Controller != "" {
		f.Controller = recs[0].Controller
	}
	for _, s := range FromRecords(recs) {
		f.Steps = append(f.Steps, FixtureStep{StepID: s.StepID, Outcome: s.Outcome})
	}
	for _, rec := range recs {
		if rec.Outcome == nil {
			continue
		}
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			StepID: fmt.Sprintf("step_%d", rec.Step),
			Regime: rec.RegimeAfter,
		})
	}
	return f
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion fixture-export
