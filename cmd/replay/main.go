package main

import (
	"flag"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/danielpatrickdp/hormone-harness/internal/config"
	"github.com/danielpatrickdp/hormone-harness/internal/controller"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/replay"
	"github.com/danielpatrickdp/hormone-harness/internal/signals"
)

// #region main

func main() {
	stepsPath := flag.String("steps", "", "path to a recorded steps.jsonl (record mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	configPath := flag.String("config", "", "harness YAML config for controller and signal settings")
	flag.Parse()

	if (*stepsPath == "" && *fixturePath == "") || (*stepsPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --steps path/to/steps.jsonl [--config harness.yaml]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json [--config harness.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	var f *replay.Fixture
	if *fixturePath != "" {
		f, err = replay.LoadFixture(*fixturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
			os.Exit(2)
		}
	} else {
		recs, err := record.ReadSteps(*stepsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read steps: %v\n", err)
			os.Exit(2)
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "no records found")
			os.Exit(2)
		}
		f = replay.FixtureFromRecords(recs, *stepsPath)
	}

	os.Exit(runReplay(cfg, f))
}

// #endregion main

// #region replay

func runReplay(cfg *config.Config, f *replay.Fixture) int {
	factory, err := controller.NewFactory(cfg.Controller)
	if err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		return 2
	}
	ctrl, err := factory.New(f.Controller)
	if err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		return 2
	}
	producer, err := signals.NewProducer(cfg.Signals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signals: %v\n", err)
		return 2
	}

	results, err := replay.Replay(ctrl, producer, f.ToSteps())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(f, results)
}

// #endregion replay

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(f *replay.Fixture, results []replay.ReplayResult) int {
	expected := make(map[int]string, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		expected[i] = string(e.Regime)
	}

	fmt.Printf("%-12s| %-18s| %-18s| %-20s| %s\n", "Step", "Expected", "Replayed", "DA/CORT/NRG", "Match")
	fmt.Printf("%-12s+%-19s+%-19s+%-21s+%s\n",
		"------------", "-------------------", "-------------------", "---------------------", "------")
	for i, r := range results {
		want, ok := expected[i]
		match := "-"
		if ok {
			match = "yes"
			if want != string(r.RegimeAfter) {
				match = "NO"
			}
		}
		flip := ""
		if r.Flipped() {
			flip = " *"
		}
		fmt.Printf("%-12s| %-18s| %-18s| %.3f/%.3f/%.3f  | %s\n",
			r.StepID, want, string(r.RegimeAfter)+flip, r.After.Dopamine, r.After.Cortisol, r.After.Energy, match)
	}

	sum := replay.Summarize(results)
	fmt.Printf("\nSteps: %d  Flips: %d  Final: %s\n", sum.TotalSteps, sum.Flips, sum.FinalRegime)
	for _, rg := range slices.Sorted(maps.Keys(sum.Regimes)) {
		fmt.Printf("  %-18s %d\n", rg, sum.Regimes[rg])
	}

	mismatches := f.Check(results)
	if len(mismatches) == 0 {
		fmt.Println("\nall steps match")
		return 0
	}
	fmt.Printf("\n%d mismatches:\n", len(mismatches))
	for _, m := range mismatches {
		fmt.Printf("  %s\n", m)
	}
	return 1
}

// #endregion output
