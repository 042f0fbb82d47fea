package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/hormone-harness/internal/record"
	"github.com/danielpatrickdp/hormone-harness/internal/replay"
	"github.com/danielpatrickdp/hormone-harness/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run index database")
	runID := flag.String("run", "", "run id to export (with --db)")
	stepsPath := flag.String("steps", "", "path to a recorded steps.jsonl")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	fromDB := *dbPath != "" && *runID != ""
	if *outPath == "" || fromDB == (*stepsPath != "") {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/runs.db --run id --out path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       fixture-export --steps path/to/steps.jsonl --out path/to/fixture.json")
		os.Exit(2)
	}

	var (
		recs []record.StepRecord
		err  error
	)
	if fromDB {
		recs, err = fromStore(context.Background(), *dbPath, *runID)
	} else {
		recs, err = record.ReadSteps(*stepsPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := export(recs, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func fromStore(ctx context.Context, dbPath, runID string) ([]record.StepRecord, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	rows, err := st.Steps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	recs := make([]record.StepRecord, len(rows))
	for i, row := range rows {
		if err := json.Unmarshal([]byte(row.RecordJSON), &recs[i]); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", row.Step, err)
		}
	}
	return recs, nil
}

// #endregion extract

// #region export

func export(recs []record.StepRecord, outPath string) error {
	if len(recs) == 0 {
		return fmt.Errorf("no steps to export")
	}
	desc := fmt.Sprintf("exported from run %s (task %d, seed %d, controller %s)",
		recs[0].RunID, recs[0].TaskID, recs[0].Seed, recs[0].Controller)
	f := replay.FixtureFromRecords(recs, desc)

	if err := f.Save(outPath); err != nil {
		return err
	}
	fmt.Printf("wrote %d steps to %s\n", len(f.Steps), outPath)
	return nil
}

// #endregion export
