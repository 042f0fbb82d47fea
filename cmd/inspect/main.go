package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/danielpatrickdp/hormone-harness/internal/api"
	"github.com/danielpatrickdp/hormone-harness/internal/config"
	"github.com/danielpatrickdp/hormone-harness/internal/eval"
	"github.com/danielpatrickdp/hormone-harness/internal/logging"
	"github.com/danielpatrickdp/hormone-harness/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run index database")
	outDir := flag.String("out", "", "run output directory to evaluate (eval mode)")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	benchmark := flag.String("benchmark", "", "filter runs by benchmark")
	ctrl := flag.String("controller", "", "filter runs by controller state (off|on)")
	iterations := flag.Int("iterations", 0, "bootstrap resamples (eval mode, 0 = configured)")
	serve := flag.Bool("serve", false, "serve the run index over HTTP on the configured api addr")
	configPath := flag.String("config", "", "harness YAML config (store path, api addr, logging)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *dbPath == "" && *outDir == "" {
		*dbPath = cfg.Store.Path
	}

	if (*dbPath == "" && *outDir == "") || (*outDir != "" && *serve) {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/runs.db [--last N] [--run id] [--benchmark b] [--controller off|on] [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --db path/to/runs.db --serve [--config harness.yaml]")
		fmt.Fprintln(os.Stderr, "       inspect --out path/to/runs [--iterations N] [--json]")
		os.Exit(2)
	}

	if *outDir != "" {
		evalCfg := cfg.Eval
		if *iterations > 0 {
			evalCfg.Iterations = *iterations
		}
		if err := runEvalMode(*outDir, evalCfg, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	switch {
	case *serve:
		err = runServeMode(st, cfg)
	case *runID != "":
		err = runDetailMode(ctx, st, *runID, *jsonOut)
	default:
		err = runListMode(ctx, st, store.RunFilter{Benchmark: *benchmark, Controller: *ctrl, Limit: *last}, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(ctx context.Context, st *store.Store, filter store.RunFilter, jsonOut bool) error {
	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	if jsonOut {
		return printJSON(runs)
	}

	fmt.Printf("%-12s  %-10s  %4s  %6s  %-4s  %-10s  %5s  %7s  %s\n",
		"Run", "Benchmark", "Task", "Seed", "Ctrl", "Status", "Steps", "Tokens", "Started")
	fmt.Printf("%-12s+-%-10s+-%4s+-%6s+-%-4s+-%-10s+-%5s+-%7s+-%s\n",
		"------------", "----------", "----", "------", "----", "----------", "-----", "-------", "--------------------")
	for _, r := range runs {
		status := r.Status
		if status == "" {
			status = "running"
		}
		fmt.Printf("%-12s  %-10s  %4d  %6d  %-4s  %-10s  %5d  %7d  %s\n",
			shortID(r.RunID), r.Benchmark, r.TaskID, r.Seed, r.Controller, status,
			r.Steps, r.TotalTokens, r.StartedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run     store.RunRow       `json:"run"`
	Steps   []store.StepRow    `json:"steps"`
	Regimes map[string]int     `json:"regimes"`
	Repairs []store.AttemptRow `json:"repairs"`
}

func runDetailMode(ctx context.Context, st *store.Store, runID string, jsonOut bool) error {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", runID, err)
	}
	steps, err := st.Steps(ctx, runID)
	if err != nil {
		return err
	}
	regimes, err := st.RegimeCounts(ctx, runID)
	if err != nil {
		return err
	}
	attempts, err := st.Attempts(ctx, runID)
	if err != nil {
		return err
	}
	out := detailOutput{Run: run, Steps: steps, Regimes: regimes}
	for _, a := range attempts {
		if a.Repair {
			out.Repairs = append(out.Repairs, a)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s\n", run.RunID)
	fmt.Printf("Benchmark:  %s  task=%d  seed=%d  controller=%s\n", run.Benchmark, run.TaskID, run.Seed, run.Controller)
	fmt.Printf("Status:     %s\n", run.Status)
	fmt.Printf("Tokens:     %d over %d steps\n", run.TotalTokens, run.Steps)
	if run.Error != "" {
		fmt.Printf("Error:      %s\n", run.Error)
	}

	fmt.Printf("\n%4s  %-18s  %-18s  %6s  %6s  %6s  %-10s  %-16s\n",
		"Step", "Before", "After", "DA", "CORT", "NRG", "Valid", "Tool")
	for _, s := range steps {
		tool := s.Tool
		switch {
		case s.Final:
			tool = "(final)"
		case s.PolicyBlocked:
			tool += " [blocked]"
		}
		fmt.Printf("%4d  %-18s  %-18s  %6.3f  %6.3f  %6.3f  %-10s  %-16s\n",
			s.Step, s.RegimeBefore, s.RegimeAfter, s.Dopamine, s.Cortisol, s.Energy, s.ValidationStatus, tool)
	}

	fmt.Printf("\nRegime occupancy:\n")
	names := make([]string, 0, len(regimes))
	for name := range regimes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %d\n", name, regimes[name])
	}

	if len(out.Repairs) > 0 {
		fmt.Printf("\nRepairs:\n")
		for _, a := range out.Repairs {
			verdict := "invalid"
			if a.Valid {
				verdict = "valid"
			}
			fmt.Printf("  step %d attempt %d: %s %s\n", a.Step, a.Index, verdict, a.Error)
		}
	}
	return nil
}

// #endregion detail-mode

// #region eval-mode

func runEvalMode(out string, cfg eval.EvalConfig, jsonOut bool) error {
	rep, err := eval.Evaluate(out, cfg)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rep)
	}

	fmt.Printf("Runs: %d  Pairs: %d  Unpaired: %d\n\n", len(rep.Runs), rep.Pairs, len(rep.Unpaired))
	fmt.Printf("%-12s  %10s  %10s  %10s  %4s\n", "Metric", "Mean", "Lo", "Hi", "N")
	fmt.Printf("%-12s+-%10s+-%10s+-%10s+-%4s\n", "------------", "----------", "----------", "----------", "----")
	for _, name := range []string{eval.MetricUtility, eval.MetricRiskEvents, eval.MetricTokens, eval.MetricSteps} {
		ci := rep.Deltas[name]
		fmt.Printf("%-12s  %10.4f  %10.4f  %10.4f  %4d\n", name, ci.Mean, ci.Lo, ci.Hi, ci.N)
	}

	failed := 0
	for _, s := range rep.Shape {
		if !s.Passed {
			failed++
			fmt.Printf("\nshape mismatch %s: %s\n", s.Key, s.Reason)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pairs are not comparable", failed, len(rep.Shape))
	}
	return nil
}

// #endregion eval-mode

// #region serve-mode

func runServeMode(st *store.Store, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewHandler(st, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("inspect api listening", "addr", cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// #endregion serve-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
