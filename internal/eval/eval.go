package eval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/regime"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
)

// Delta metric names.
const (
	MetricUtility    = "utility"
	MetricRiskEvents = "risk_events"
	MetricTokens     = "tokens"
	MetricSteps      = "steps"
)

// #region measure
// Measure reads one run directory.
func Measure(loc record.Location) (RunMetrics, error) {
	m := RunMetrics{
		Dir:        loc.Dir,
		Benchmark:  loc.Benchmark,
		TaskID:     loc.TaskID,
		Seed:       loc.Seed,
		Controller: loc.Controller,
		Regimes:    make(map[regime.Regime]int),
	}
	recs, err := record.ReadSteps(filepath.Join(loc.Dir, record.StepsFile))
	if err != nil {
		return m, err
	}

	final := false
	for _, rec := range recs {
		m.Steps++
		m.Tokens += rec.Usage.TotalTokens
		m.Repairs += rec.Validation.Repairs
		m.Regimes[rec.RegimeAfter]++
		if rec.Validation.Status == schema.StatusExhausted {
			m.Exhausted++
		}
		if rec.Final {
			final = true
		}
		if raw := rec.RawOutcome; raw != nil {
			m.RiskEvents += len(raw.RiskEvents)
			m.PolicyBlocks += raw.PolicyBlocks
			m.ToolErrors += raw.ToolErrors
		}
	}
	m.HardFailure = !final

	status, err := responseStatus(filepath.Join(loc.Dir, record.ResponseFile))
	if err != nil {
		return m, err
	}
	m.Success = status == "SUCCESS"
	if m.Success {
		m.Utility = 1
	}
	return m, nil
}

// responseStatus returns the status of an agent response, "" when there is none.
func responseStatus(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.Status, nil
}

// #endregion measure

// #region pair
// Pair groups runs by task and seed. Runs without a counterpart are returned
// separately, sorted by directory.
func Pair(runs []RunMetrics) ([]PairedRun, []RunMetrics) {
	type slot struct{ off, on *RunMetrics }
	slots := make(map[string]*slot)
	for i := range runs {
		r := &runs[i]
		key := record.Location{Benchmark: r.Benchmark, TaskID: r.TaskID, Seed: r.Seed}.PairKey()
		s := slots[key]
		if s == nil {
			s = &slot{}
			slots[key] = s
		}
		if r.Controller == record.ControllerOff {
			s.off = r
		} else {
			s.on = r
		}
	}

	var pairs []PairedRun
	var unpaired []RunMetrics
	for key, s := range slots {
		switch {
		case s.off != nil && s.on != nil:
			pairs = append(pairs, PairedRun{Key: key, Off: *s.off, On: *s.on})
		case s.off != nil:
			unpaired = append(unpaired, *s.off)
		default:
			unpaired = append(unpaired, *s.on)
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	sort.Slice(unpaired, func(i, j int) bool { return unpaired[i].Dir < unpaired[j].Dir })
	return pairs, unpaired
}

// Deltas returns ON - OFF for one metric over every pair.
func Deltas(pairs []PairedRun, metric string) ([]float64, error) {
	get, err := metricFunc(metric)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = get(p.On) - get(p.Off)
	}
	return out, nil
}

func metricFunc(name string) (func(RunMetrics) float64, error) {
	switch name {
	case MetricUtility:
		return func(m RunMetrics) float64 { return m.Utility }, nil
	case MetricRiskEvents:
		return func(m RunMetrics) float64 { return float64(m.RiskEvents) }, nil
	case MetricTokens:
		return func(m RunMetrics) float64 { return float64(m.Tokens) }, nil
	case MetricSteps:
		return func(m RunMetrics) float64 { return float64(m.Steps) }, nil
	}
	return nil, fmt.Errorf("unknown metric %q", name)
}

// #endregion pair

// #region bootstrap
// BootstrapCI resamples the paired deltas with replacement and returns the
// percentile interval of the resampled means. An empty input yields NaNs.
func BootstrapCI(deltas []float64, config EvalConfig) CI {
	n := len(deltas)
	if n == 0 || config.Iterations < 1 {
		nan := math.NaN()
		return CI{Mean: nan, Lo: nan, Hi: nan}
	}

	rng := rand.New(rand.NewPCG(config.Seed, 0))
	means := make([]float64, config.Iterations)
	for it := range means {
		sum := 0.0
		for range n {
			sum += deltas[rng.IntN(n)]
		}
		means[it] = sum / float64(n)
	}
	slices.Sort(means)

	lo := int((config.Alpha / 2) * float64(config.Iterations))
	hi := int((1-config.Alpha/2)*float64(config.Iterations)) - 1
	lo = min(max(lo, 0), config.Iterations-1)
	hi = min(max(hi, lo), config.Iterations-1)

	return CI{Mean: mean(deltas), Lo: means[lo], Hi: means[hi], N: n}
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// #endregion bootstrap

// #region shape
// opaque fields carry model or environment data whose keys vary by content,
// so only their presence is part of a record's shape.
var opaque = map[string]bool{
	"payload":                 true,
	"action":                  true,
	"outcome":                 true,
	"raw_outcome":             true,
	"validation.attempts":     true,
	"controls.tool_allowlist": true,
}

// Shape returns the sorted key paths of a steps file. Values are ignored, so
// timestamps, run ids and the controller state never differ. The raw lines are
// read so that fields unknown to this build still count.
func Shape(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	paths := make(map[string]bool)
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var v map[string]any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		collect("", v, paths)
	}
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func collect(prefix string, v map[string]any, into map[string]bool) {
	for k, child := range v {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		into[path] = true
		if opaque[path] {
			continue
		}
		if obj, ok := child.(map[string]any); ok {
			collect(path, obj, into)
		}
	}
}

// Compare checks that the OFF and ON steps files of a pair share one shape.
func Compare(key, offDir, onDir string) (EvalResult, error) {
	a, err := Shape(filepath.Join(offDir, record.StepsFile))
	if err != nil {
		return EvalResult{}, err
	}
	b, err := Shape(filepath.Join(onDir, record.StepsFile))
	if err != nil {
		return EvalResult{}, err
	}
	onlyOff, onlyOn := setDiff(a, b), setDiff(b, a)

	res := EvalResult{
		Key:    key,
		Passed: len(onlyOff) == 0 && len(onlyOn) == 0,
		Metrics: []EvalMetric{
			{Name: "fields_only_off", Value: float64(len(onlyOff)), Pass: len(onlyOff) == 0},
			{Name: "fields_only_on", Value: float64(len(onlyOn)), Pass: len(onlyOn) == 0},
		},
		Reason: "records share one shape",
	}
	if !res.Passed {
		res.Reason = fmt.Sprintf("shape differs: off only [%s], on only [%s]",
			strings.Join(onlyOff, ", "), strings.Join(onlyOn, ", "))
	}
	return res, nil
}

func setDiff(a, b []string) []string {
	var out []string
	for _, x := range a {
		if _, found := slices.BinarySearch(b, x); !found {
			out = append(out, x)
		}
	}
	return out
}

// #endregion shape

// #region evaluate
// Evaluate measures every run under out, pairs them, bootstraps the ON - OFF
// deltas and checks each pair for record comparability.
func Evaluate(out string, config EvalConfig) (Report, error) {
	locs, err := record.Scan(out)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for _, loc := range locs {
		m, err := Measure(loc)
		if err != nil {
			return Report{}, fmt.Errorf("measure %s: %w", loc.Dir, err)
		}
		rep.Runs = append(rep.Runs, m)
	}

	pairs, unpaired := Pair(rep.Runs)
	rep.Pairs = len(pairs)
	for _, u := range unpaired {
		rep.Unpaired = append(rep.Unpaired, u.Dir)
	}

	rep.Deltas = make(map[string]CI)
	for _, name := range []string{MetricUtility, MetricRiskEvents, MetricTokens, MetricSteps} {
		d, err := Deltas(pairs, name)
		if err != nil {
			return Report{}, err
		}
		rep.Deltas[name] = BootstrapCI(d, config)
	}

	for _, p := range pairs {
		res, err := Compare(p.Key, p.Off.Dir, p.On.Dir)
		if err != nil {
			return Report{}, err
		}
		rep.Shape = append(rep.Shape, res)
	}
	return rep, nil
}

// #endregion evaluate
