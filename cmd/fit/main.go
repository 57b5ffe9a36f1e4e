package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/minodes/hmm-filter/internal/eval"
	"github.com/minodes/hmm-filter/internal/store"
	"github.com/minodes/hmm-filter/internal/transition"
)

// #region main

func main() {
	input := flag.String("input", "", "path to observations JSONL (session_id, timestamp, label per line)")
	dbPath := flag.String("db", "", "path to hmm_filter.db")
	smoothing := flag.Float64("smoothing", 0, "Laplace pseudo-count (0 = raw maximum likelihood)")
	flag.Parse()

	if *input == "" || *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fit --input rows.jsonl --db path/to/hmm_filter.db [--smoothing a]")
		os.Exit(2)
	}

	if err := run(*input, *dbPath, *smoothing); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region fit

func run(input, dbPath string, smoothing float64) error {
	obs, err := readObservations(input)
	if err != nil {
		return err
	}

	cfg := transition.DefaultConfig()
	cfg.Smoothing = smoothing
	m, err := transition.Estimate(obs, cfg)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	fmt.Printf("Fitted %d observations: %d states, %d transition pairs\n\n",
		len(obs), m.Size(), m.Observed())
	fmt.Println("Eval:")
	verdict := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(m)
	for _, metric := range verdict.Metrics {
		mark := "ok"
		if !metric.Pass {
			mark = "FAIL"
		}
		fmt.Printf("  %-30s %12.4f  %s\n", metric.Name, metric.Value, mark)
	}
	if !verdict.Passed {
		return fmt.Errorf("%s", verdict.Reason)
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	parent := ""
	if cur, err := st.GetActive(); err == nil {
		parent = cur.ModelID
	}

	rec, err := st.SaveModel(store.RecordFromMatrix("", parent, m))
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	fmt.Printf("\nModel %s saved and activated\n", rec.ModelID)
	if parent != "" {
		fmt.Printf("Replaces %s\n", parent)
	}
	return nil
}

// #endregion fit

// #region input

// obsRow mirrors one JSONL input line.
type obsRow struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

func readObservations(path string) ([]transition.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var obs []transition.Observation
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var r obsRow
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		obs = append(obs, transition.Observation{
			SessionID: r.SessionID,
			Timestamp: r.Timestamp,
			Label:     r.Label,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return obs, nil
}

// #endregion input
