// Package config loads harness configuration from a YAML file and HORMONE_*
// environment variables over compiled-in defaults.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/hormone-harness/internal/controller"
	"github.com/danielpatrickdp/hormone-harness/internal/episode"
	"github.com/danielpatrickdp/hormone-harness/internal/eval"
	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/logging"
	"github.com/danielpatrickdp/hormone-harness/internal/schema"
	"github.com/danielpatrickdp/hormone-harness/internal/signals"
	"github.com/danielpatrickdp/hormone-harness/internal/stream"
)

// #region types
// Config holds all harness configuration.
type Config struct {
	Run        RunConfig              `yaml:"run"`
	Controller controller.Config      `yaml:"controller"`
	Signals    signals.ProducerConfig `yaml:"signals"`
	Schema     schema.Config          `yaml:"schema"`
	Model      ModelConfig            `yaml:"model"`
	Store      StoreConfig            `yaml:"store"`
	Stream     stream.Config          `yaml:"stream"`
	API        APIConfig              `yaml:"api"`
	Eval       eval.EvalConfig        `yaml:"eval"`
	Log        logging.Config         `yaml:"log"`
}

// RunConfig is the episode options plus the task by seed grid.
type RunConfig struct {
	episode.Options `yaml:",inline"`
	Tasks           []int   `yaml:"tasks"`
	Seeds           []int64 `yaml:"seeds"`
	Parallel        int     `yaml:"parallel"`
}

// Model backends.
const (
	BackendDummy = "dummy"
	BackendGRPC  = "grpc"
)

type ModelConfig struct {
	Backend string `yaml:"backend"`
	Addr    string `yaml:"addr"` // grpc target
}

type StoreConfig struct {
	Path string `yaml:"path"` // "" disables the SQLite index
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

// #endregion types

// #region load
// Load reads configuration from a YAML file, then applies environment variable
// overrides. Environment variables take precedence over YAML values.
// Env var format: HORMONE_RUN_MAX_STEPS, HORMONE_MODEL_ADDR, etc.
// An empty path means defaults plus environment; a path that cannot be read is
// a configuration error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the compiled-in configuration.
func Defaults() *Config {
	return &Config{
		Run: RunConfig{
			Options:  episode.DefaultOptions(),
			Tasks:    []int{0},
			Seeds:    []int64{0},
			Parallel: 2,
		},
		Controller: controller.DefaultConfig(),
		Signals:    signals.DefaultProducerConfig(),
		Schema:     schema.DefaultConfig(),
		Model:      ModelConfig{Backend: BackendDummy},
		Stream:     stream.DefaultConfig(),
		API:        APIConfig{Addr: ":8080"},
		Eval:       eval.DefaultEvalConfig(),
		Log:        logging.DefaultConfig(),
	}
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fault.Configf("config", "read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fault.Configf("config", "parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"HORMONE_RUN_OUT_DIR":      &cfg.Run.OutDir,
		"HORMONE_RUN_BENCHMARK":    &cfg.Run.Benchmark,
		"HORMONE_RUN_ON_EXHAUSTED": &cfg.Run.OnExhausted,
		"HORMONE_MODEL_BACKEND":    &cfg.Model.Backend,
		"HORMONE_MODEL_ADDR":       &cfg.Model.Addr,
		"HORMONE_STORE_PATH":       &cfg.Store.Path,
		"HORMONE_STREAM_URL":       &cfg.Stream.URL,
		"HORMONE_API_ADDR":         &cfg.API.Addr,
		"HORMONE_LOG_FORMAT":       &cfg.Log.Format,
		"HORMONE_LOG_FILE":         &cfg.Log.File,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("HORMONE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}

	ints := map[string]*int{
		"HORMONE_RUN_MAX_STEPS":      &cfg.Run.MaxSteps,
		"HORMONE_RUN_PARALLEL":       &cfg.Run.Parallel,
		"HORMONE_SCHEMA_MAX_REPAIRS": &cfg.Schema.MaxRepairs,
		"HORMONE_EVAL_ITERATIONS":    &cfg.Eval.Iterations,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fault.Configf("config", "%s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("HORMONE_RUN_STEP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fault.Configf("config", "HORMONE_RUN_STEP_TIMEOUT: %w", err)
		}
		cfg.Run.StepTimeout = d
	}
	if v := os.Getenv("HORMONE_RUN_TASKS"); v != "" {
		tasks, err := parseList(v, strconv.Atoi)
		if err != nil {
			return fault.Configf("config", "HORMONE_RUN_TASKS: %w", err)
		}
		cfg.Run.Tasks = tasks
	}
	if v := os.Getenv("HORMONE_RUN_SEEDS"); v != "" {
		seeds, err := parseList(v, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
		if err != nil {
			return fault.Configf("config", "HORMONE_RUN_SEEDS: %w", err)
		}
		cfg.Run.Seeds = seeds
	}
	return nil
}

// parseList reads a comma separated list.
func parseList[T any](v string, parse func(string) (T, error)) ([]T, error) {
	parts := strings.Split(v, ",")
	out := make([]T, 0, len(parts))
	for _, p := range parts {
		n, err := parse(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// #endregion load

// #region validate
// Validate builds every component config once and reports the first problem as
// a configuration error.
func (c *Config) Validate() error {
	if _, err := controller.NewFactory(c.Controller); err != nil {
		return err
	}
	if _, err := signals.NewProducer(c.Signals); err != nil {
		return err
	}
	if _, err := schema.NewGuard(c.Schema, nil); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fault.Configf("config", "log: %w", err)
	}
	if f := c.Log.Format; f != "" && f != "text" && f != "json" {
		return fault.Configf("config", "log format %q: expected text or json", f)
	}

	r := c.Run
	switch {
	case r.MaxSteps < 1:
		return fault.Configf("config", "run.max_steps must be positive, got %d", r.MaxSteps)
	case r.OnExhausted != episode.OnExhaustedContinue && r.OnExhausted != episode.OnExhaustedAbort:
		return fault.Configf("config", "run.on_exhausted %q: expected continue or abort", r.OnExhausted)
	case r.StepTimeout < 0:
		return fault.Configf("config", "run.step_timeout must not be negative")
	case r.OutDir == "":
		return fault.Configf("config", "run.out_dir is required")
	case len(r.Tasks) == 0 || len(r.Seeds) == 0:
		return fault.Configf("config", "run.tasks and run.seeds must not be empty")
	case r.Parallel < 1:
		return fault.Configf("config", "run.parallel must be positive, got %d", r.Parallel)
	}

	if c.Eval.Iterations < 1 {
		return fault.Configf("config", "eval.iterations must be positive, got %d", c.Eval.Iterations)
	}
	if c.Eval.Alpha <= 0 || c.Eval.Alpha >= 1 {
		return fault.Configf("config", "eval.alpha must be in (0,1), got %g", c.Eval.Alpha)
	}

	switch c.Model.Backend {
	case BackendDummy:
	case BackendGRPC:
		if c.Model.Addr == "" {
			return fault.Configf("config", "model.addr is required for the grpc backend")
		}
	default:
		return fault.Configf("config", "model.backend %q: expected dummy or grpc", c.Model.Backend)
	}
	return nil
}

// #endregion validate
