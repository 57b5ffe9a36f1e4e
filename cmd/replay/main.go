package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/minodes/hmm-filter/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to replay fixture JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	os.Exit(runFixture(*fixturePath))
}

// #endregion main

// #region replay

func runFixture(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}

	results, failed, err := replay.Replay(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	printRows(results)
	summary := replay.Summarize(results, failed)
	printSummary(summary, failed)

	ok, reason := summary.Meets(f.Expected)
	if !ok {
		fmt.Fprintf(os.Stderr, "\nFAIL: %s\n", reason)
		return 1
	}
	fmt.Println("\nOK")
	return 0
}

// #endregion replay

// #region output

func printRows(results []replay.RowResult) {
	fmt.Printf("%-12s| %6s | %-10s| %-10s| %-10s| %s\n",
		"Session", "T", "Actual", "Raw", "Decoded", "Match")
	fmt.Printf("%-12s+%8s+%-11s+%-11s+%-11s+%s\n",
		"------------", "--------", "-----------", "-----------", "-----------", "------")

	for _, r := range results {
		match := "-"
		switch {
		case r.Actual == "":
			match = "-"
		case r.Decoded == r.Actual:
			match = "OK"
		default:
			match = "MISS"
		}
		fmt.Printf("%-12s| %6d | %-10s| %-10s| %-10s| %s\n",
			r.SessionID, r.Timestamp, r.Actual, r.Raw, r.Decoded, match)
	}
}

func printSummary(s replay.ReplaySummary, failed map[string]error) {
	fmt.Printf("\nSummary: %d rows (%d scored) in %d sessions\n", s.Rows, s.ScoredRows, s.Sessions)
	fmt.Printf("  raw accuracy      %d/%d = %.4f\n", s.RawCorrect, s.ScoredRows, s.RawAccuracy)
	fmt.Printf("  decoded accuracy  %d/%d = %.4f\n", s.DecodedCorrect, s.ScoredRows, s.DecodedAccuracy)
	fmt.Printf("  improvement       %+.4f\n", s.Improvement)

	if len(s.FailedSessions) > 0 {
		fmt.Printf("\nFailed sessions:\n")
		for _, id := range s.FailedSessions {
			fmt.Printf("  %-12s %v\n", id, failed[id])
		}
	}
}

// #endregion output
