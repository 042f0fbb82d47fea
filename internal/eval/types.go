package eval

import (
	"encoding/json"
	"math"

	"github.com/danielpatrickdp/hormone-harness/internal/regime"
)

// #region eval-config
// EvalConfig holds the bootstrap parameters for paired deltas.
type EvalConfig struct {
	Iterations int     `yaml:"iterations"`
	Alpha      float64 `yaml:"alpha"` // two-sided; 0.05 gives a 95% interval
	Seed       uint64  `yaml:"seed"`
}

// DefaultEvalConfig returns 5000 resamples at alpha 0.05.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Iterations: 5000,
		Alpha:      0.05,
		Seed:       0,
	}
}

// #endregion eval-config

// #region run-metrics
// RunMetrics summarises one recorded run.
type RunMetrics struct {
	Dir        string `json:"dir"`
	Benchmark  string `json:"benchmark"`
	TaskID     int    `json:"task_id"`
	Seed       int64  `json:"seed"`
	Controller string `json:"controller"`

	Success      bool    `json:"success"` // agent response status is SUCCESS
	Utility      float64 `json:"utility"`
	HardFailure  bool    `json:"hard_failure"` // no schema-valid final answer
	RiskEvents   int     `json:"risk_events"`
	PolicyBlocks int     `json:"policy_blocks"`
	ToolErrors   int     `json:"tool_errors"`
	Repairs      int     `json:"repairs"`
	Exhausted    int     `json:"exhausted"` // steps whose repair loop gave up
	Tokens       int     `json:"tokens"`
	Steps        int     `json:"steps"`

	Regimes map[regime.Regime]int `json:"regimes"` // steps per regime after the update
}

// #endregion run-metrics

// #region pairs
// PairedRun is the OFF and ON run of one task and seed.
type PairedRun struct {
	Key string
	Off RunMetrics
	On  RunMetrics
}

// CI is a bootstrap confidence interval of the mean paired delta (ON - OFF).
type CI struct {
	Mean float64 `json:"mean"`
	Lo   float64 `json:"lo"`
	Hi   float64 `json:"hi"`
	N    int     `json:"n"`
}

// MarshalJSON writes undefined bounds (no pairs) as null.
func (c CI) MarshalJSON() ([]byte, error) {
	num := func(f float64) *float64 {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return json.Marshal(struct {
		Mean *float64 `json:"mean"`
		Lo   *float64 `json:"lo"`
		Hi   *float64 `json:"hi"`
		N    int      `json:"n"`
	}{num(c.Mean), num(c.Lo), num(c.Hi), c.N})
}

// Report is the evaluation of a whole output tree.
type Report struct {
	Runs     []RunMetrics  `json:"runs"`
	Pairs    int           `json:"pairs"`
	Unpaired []string      `json:"unpaired"` // dirs of runs missing their counterpart
	Deltas   map[string]CI `json:"deltas"`   // per metric name
	Shape    []EvalResult  `json:"shape"`    // record comparability per pair
}

// #endregion pairs

// #region eval-metric
// EvalMetric captures a single comparability check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the comparability verdict of one OFF/ON pair.
type EvalResult struct {
	Key     string       `json:"key"`
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
