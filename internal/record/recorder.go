package record

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
)

// #region recorder
// Recorder appends step records of one run to <dir>/steps.jsonl and forwards them
// to sinks. It never rewrites a line: indices must be consecutive from 0 and an
// existing steps file is refused.
type Recorder struct {
	mu     sync.Mutex
	id     Identity
	dir    string
	file   *os.File
	next   int
	sinks  []Sink
	logger *slog.Logger
	closed bool
}

// Open creates the run directory and its steps file and announces the run to
// every RunSink.
func Open(ctx context.Context, dir string, id Identity, sinks []Sink, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ensureDir(dir); err != nil {
		return nil, fault.New(fault.ClassEnvironment, "record.open", err)
	}
	path := filepath.Join(dir, StepsFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fault.Configf("record.open", "run already recorded at %s", path)
		}
		return nil, fault.New(fault.ClassEnvironment, "record.open", err)
	}

	r := &Recorder{
		id:     id,
		dir:    dir,
		file:   f,
		sinks:  sinks,
		logger: logger.With("run_id", id.RunID, "controller", id.Controller),
	}
	for _, s := range sinks {
		if rs, ok := s.(RunSink); ok {
			if err := rs.BeginRun(ctx, id); err != nil {
				r.logger.Warn("sink begin run failed", "error", err)
			}
		}
	}
	return r, nil
}

// Dir is the run directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// Count is the number of records written so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// #endregion recorder

// #region record
// Record stamps the run identity on rec and appends it. The line is on disk before
// Record returns; sink failures are logged and do not fail the step.
func (r *Recorder) Record(ctx context.Context, rec StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fault.New(fault.ClassEnvironment, "record.write", errors.New("recorder closed"))
	}
	if rec.Step != r.next {
		return fault.New(fault.ClassValidation, "record.write",
			fmt.Errorf("step %d out of order, expected %d", rec.Step, r.next))
	}
	rec.Identity = r.id

	line, err := json.Marshal(rec)
	if err != nil {
		return fault.New(fault.ClassEnvironment, "record.write", fmt.Errorf("marshal step %d: %w", rec.Step, err))
	}
	line = append(line, '\n')
	if _, err := r.file.Write(line); err != nil {
		return fault.New(fault.ClassEnvironment, "record.write", fmt.Errorf("append step %d: %w", rec.Step, err))
	}
	r.next++

	for _, s := range r.sinks {
		if err := s.WriteStep(ctx, rec); err != nil {
			r.logger.Warn("sink write failed", "step", rec.Step, "error", err)
		}
	}
	return nil
}

// WriteResponse stores the run's final agent response next to the steps file.
func (r *Recorder) WriteResponse(payload json.RawMessage) error {
	var pretty []byte
	var err error
	if len(payload) == 0 {
		pretty = []byte("null")
	} else if pretty, err = indent(payload); err != nil {
		return fault.New(fault.ClassEnvironment, "record.response", err)
	}
	path := filepath.Join(r.dir, ResponseFile)
	if err := os.WriteFile(path, append(pretty, '\n'), 0o644); err != nil {
		return fault.New(fault.ClassEnvironment, "record.response", err)
	}
	return nil
}

func indent(payload json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return json.MarshalIndent(v, "", "  ")
}

// #endregion record

// #region close
// Finish reports the summary to every RunSink and closes the steps file.
// The file is closed even when the context is already cancelled.
func (r *Recorder) Finish(ctx context.Context, summary Summary) error {
	for _, s := range r.sinks {
		if rs, ok := s.(RunSink); ok {
			if err := rs.FinishRun(context.WithoutCancel(ctx), r.id, summary); err != nil {
				r.logger.Warn("sink finish run failed", "error", err)
			}
		}
	}
	return r.Close()
}

// Close syncs and closes the steps file. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.file.Sync(); err != nil {
		r.file.Close()
		return fmt.Errorf("sync steps: %w", err)
	}
	return r.file.Close()
}

// #endregion close

// #region read
// ReadSteps loads every record of a steps file in order.
func ReadSteps(path string) ([]StepRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open steps: %w", err)
	}
	defer f.Close()

	var recs []StepRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec StepRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	return recs, nil
}

// #endregion read
