package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"pgregory.net/rapid"
)

// Property: environment overrides win over YAML values, and YAML values win over
// defaults, for every key set in both places.
func TestPropertyConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		yamlSteps := rapid.IntRange(1, 200).Draw(rt, "yaml_steps")
		yamlAddr := rapid.StringMatching(`[a-z]{3,8}:[1-9][0-9]{3}`).Draw(rt, "yaml_addr")
		yamlBench := rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "yaml_bench")
		useEnv := rapid.Bool().Draw(rt, "use_env")
		envSteps := rapid.IntRange(1, 200).Draw(rt, "env_steps")
		envAddr := rapid.StringMatching(`[a-z]{3,8}\.env:[1-9][0-9]{3}`).Draw(rt, "env_addr")

		path := filepath.Join(dir, "harness.yaml")
		body := fmt.Sprintf("run:\n  benchmark: %q\n  max_steps: %d\nmodel:\n  backend: grpc\n  addr: %q\n",
			yamlBench, yamlSteps, yamlAddr)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			rt.Fatalf("write yaml: %v", err)
		}

		os.Unsetenv("HORMONE_RUN_MAX_STEPS")
		os.Unsetenv("HORMONE_MODEL_ADDR")
		if useEnv {
			os.Setenv("HORMONE_RUN_MAX_STEPS", strconv.Itoa(envSteps))
			os.Setenv("HORMONE_MODEL_ADDR", envAddr)
		}
		defer os.Unsetenv("HORMONE_RUN_MAX_STEPS")
		defer os.Unsetenv("HORMONE_MODEL_ADDR")

		cfg, err := Load(path)
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}
		wantSteps, wantAddr := yamlSteps, yamlAddr
		if useEnv {
			wantSteps, wantAddr = envSteps, envAddr
		}
		if cfg.Run.MaxSteps != wantSteps || cfg.Model.Addr != wantAddr {
			rt.Fatalf("precedence broken: steps=%d addr=%q, want %d %q", cfg.Run.MaxSteps, cfg.Model.Addr, wantSteps, wantAddr)
		}
		if cfg.Run.Benchmark != yamlBench || cfg.Schema.MaxRepairs != 2 {
			rt.Fatalf("yaml or default value lost: %+v", cfg.Run)
		}
	})
}
