package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/rpc"
)

// #region main

func main() {
	input := flag.String("input", "", "path to predict rows JSONL (session_id, timestamp, emissions per line)")
	addr := flag.String("addr", envOr("FILTER_ADDR", "localhost:50051"), "filterd address")
	timeout := flag.Duration("timeout", 30*time.Second, "per-call timeout")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: predict --input rows.jsonl [--addr host:port] [--timeout 30s] [--json]")
		os.Exit(2)
	}

	if err := run(*input, *addr, *timeout, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region predict

func run(input, addr string, timeout time.Duration, asJSON bool) error {
	rows, err := readRows(input)
	if err != nil {
		return err
	}

	client, err := rpc.NewClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	// Fetch the active model first: a clean "not fitted" failure beats
	// shipping the whole payload to find out.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	model, err := client.ActiveModel(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("active model: %w", err)
	}
	if !asJSON {
		fmt.Printf("Active model %s: %d states, smoothing %.2f, %d observed pairs\n\n",
			model.ModelID, len(model.States), model.Smoothing, model.Observed)
	}

	ctx, cancel = context.WithTimeout(context.Background(), timeout)
	res, err := client.Predict(ctx, rows)
	cancel()
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	if asJSON {
		return printJSON(predictOutput{
			RunID:   res.RunID,
			ModelID: model.ModelID,
			Labels:  res.Labels,
			Failed:  res.Failed,
		})
	}
	printTable(rows, res)
	return nil
}

// #endregion predict

// #region input

// predictRow mirrors one JSONL input line.
type predictRow struct {
	SessionID string             `json:"session_id"`
	Timestamp int64              `json:"timestamp"`
	Emissions map[string]float64 `json:"emissions"`
}

func readRows(path string) ([]filter.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rows []filter.Row
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var r predictRow
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, filter.Row{
			SessionID: r.SessionID,
			Timestamp: r.Timestamp,
			Emissions: r.Emissions,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// #endregion input

// #region output

type predictOutput struct {
	RunID   string            `json:"run_id"`
	ModelID string            `json:"model_id"`
	Labels  []string          `json:"labels"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func printTable(rows []filter.Row, res rpc.PredictResult) {
	fmt.Printf("%-12s| %6s | %s\n", "Session", "T", "Decoded")
	fmt.Printf("%-12s+%8s+%s\n", "------------", "--------", "-----------")

	decoded := 0
	sessions := make(map[string]bool)
	for i, r := range rows {
		sessions[r.SessionID] = true
		label := "-"
		if i < len(res.Labels) && res.Labels[i] != "" {
			label = res.Labels[i]
			decoded++
		}
		fmt.Printf("%-12s| %6d | %s\n", r.SessionID, r.Timestamp, label)
	}

	fmt.Printf("\nRun %s: %d/%d rows decoded in %d/%d sessions\n",
		res.RunID, decoded, len(rows), len(sessions)-len(res.Failed), len(sessions))

	if len(res.Failed) > 0 {
		ids := make([]string, 0, len(res.Failed))
		for id := range res.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Printf("\nFailed sessions:\n")
		for _, id := range ids {
			fmt.Printf("  %-12s %s\n", id, res.Failed[id])
		}
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
