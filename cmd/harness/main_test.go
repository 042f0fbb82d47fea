package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fault.Configf("config", "bad"), 2},
		{fault.New(fault.ClassCancelled, "runner", context.Canceled), 130},
		{fault.New(fault.ClassEnvironment, "harness", errors.New("disk")), 1},
		{errors.New("plain"), 1},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestRealMainRejectsMissingConfig(t *testing.T) {
	var stderr bytes.Buffer
	if code := realMain([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml")}, &stderr); code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "load config") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRealMainReturnsCodeAfterLoggingFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(dir, "harness.log")
	t.Setenv("HORMONE_STORE_PATH", filepath.Join(blocker, "runs.db"))
	t.Setenv("HORMONE_STREAM_URL", "")
	t.Setenv("HORMONE_LOG_FILE", logFile)

	var stderr bytes.Buffer
	if code := realMain(nil, &stderr); code != 1 {
		t.Fatalf("code = %d, want 1; stderr %q", code, stderr.String())
	}
	b, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"harness stopped"`) || !strings.Contains(string(b), `"class":"environment"`) {
		t.Fatalf("log file = %q", b)
	}
}
