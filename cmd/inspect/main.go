package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/minodes/hmm-filter/internal/logging"
	"github.com/minodes/hmm-filter/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to hmm_filter.db")
	last := flag.Int("last", 10, "show N most recent models and decode runs")
	modelID := flag.String("model", "", "show single model detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/hmm_filter.db [--last N] [--model id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *modelID != "" {
		err = runDetailMode(st, *modelID, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type modelRow struct {
	ModelID   string  `json:"model_id"`
	ParentID  string  `json:"parent_id,omitempty"`
	States    int     `json:"states"`
	Observed  int64   `json:"observed"`
	Smoothing float64 `json:"smoothing"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
}

type runRow struct {
	RunID      string `json:"run_id"`
	ModelID    string `json:"model_id"`
	Sessions   int    `json:"sessions"`
	RowsTotal  int    `json:"rows_total"`
	RowsFailed int    `json:"rows_failed"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type listOutput struct {
	Models []modelRow `json:"models"`
	Runs   []runRow   `json:"runs"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	models, err := st.ListModels(last)
	if err != nil {
		return err
	}

	activeID := ""
	if cur, err := st.GetActive(); err == nil {
		activeID = cur.ModelID
	} else if !errors.Is(err, store.ErrNoActiveModel) {
		return err
	}

	runs, err := logging.LastRuns(st.DB(), last)
	if err != nil {
		return err
	}

	out := listOutput{}
	for _, m := range models {
		out.Models = append(out.Models, modelRow{
			ModelID:   m.ModelID,
			ParentID:  m.ParentID,
			States:    len(m.States),
			Observed:  m.Observed,
			Smoothing: m.Smoothing,
			Active:    m.ModelID == activeID,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, runRow{
			RunID:      r.RunID,
			ModelID:    r.ModelID,
			Sessions:   r.Sessions,
			RowsTotal:  r.RowsTotal,
			RowsFailed: r.RowsFailed,
			Status:     r.Status,
			Reason:     r.Reason,
			CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	if jsonOut {
		return printJSON(out)
	}
	printListTables(out)
	return nil
}

func printListTables(out listOutput) {
	if len(out.Models) == 0 {
		fmt.Println("no models found")
		return
	}

	fmt.Printf("%-10s  %-10s  %7s  %8s  %7s  %-6s  %s\n",
		"Model", "Parent", "States", "Pairs", "Smooth", "Active", "Created")
	for _, m := range out.Models {
		active := ""
		if m.Active {
			active = "*"
		}
		fmt.Printf("%-10s  %-10s  %7d  %8d  %7.2f  %-6s  %s\n",
			shortID(m.ModelID), shortID(m.ParentID), m.States, m.Observed,
			m.Smoothing, active, m.CreatedAt)
	}

	if len(out.Runs) == 0 {
		fmt.Println("\nno decode runs recorded")
		return
	}

	fmt.Printf("\nRecent decode runs:\n")
	fmt.Printf("%-10s  %-10s  %8s  %6s  %6s  %-8s  %s\n",
		"Run", "Model", "Sessions", "Rows", "Failed", "Status", "Created")
	for _, r := range out.Runs {
		fmt.Printf("%-10s  %-10s  %8d  %6d  %6d  %-8s  %s\n",
			shortID(r.RunID), shortID(r.ModelID), r.Sessions, r.RowsTotal,
			r.RowsFailed, r.Status, r.CreatedAt)
	}
}

// #endregion list-mode

// #region detail-mode

type topTransition struct {
	To   string  `json:"to"`
	Prob float64 `json:"prob"`
}

type detailOutput struct {
	ModelID        string                     `json:"model_id"`
	ParentID       string                     `json:"parent_id,omitempty"`
	CreatedAt      string                     `json:"created_at"`
	States         int                        `json:"states"`
	Observed       int64                      `json:"observed"`
	Smoothing      float64                    `json:"smoothing"`
	UndefinedShare float64                    `json:"undefined_row_share"`
	TopTransitions map[string][]topTransition `json:"top_transitions"`
}

func runDetailMode(st *store.Store, modelID string, jsonOut bool) error {
	rec, err := st.GetModel(modelID)
	if err != nil {
		return err
	}
	m, err := rec.Matrix()
	if err != nil {
		return fmt.Errorf("rebuild matrix: %w", err)
	}

	states := m.States()
	defined := 0
	top := make(map[string][]topTransition, len(states))
	for _, from := range states {
		if !m.RowDefined(from) {
			continue
		}
		defined++
		top[from] = topOutgoing(m.Row(from), 3)
	}
	undefinedShare := 0.0
	if len(states) > 0 {
		undefinedShare = float64(len(states)-defined) / float64(len(states))
	}

	out := detailOutput{
		ModelID:        rec.ModelID,
		ParentID:       rec.ParentID,
		CreatedAt:      rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		States:         len(states),
		Observed:       rec.Observed,
		Smoothing:      rec.Smoothing,
		UndefinedShare: undefinedShare,
		TopTransitions: top,
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Model:           %s\n", out.ModelID)
	fmt.Printf("Parent:          %s\n", out.ParentID)
	fmt.Printf("Created:         %s\n", out.CreatedAt)
	fmt.Printf("States:          %d\n", out.States)
	fmt.Printf("Observed pairs:  %d\n", out.Observed)
	fmt.Printf("Smoothing:       %.4f\n", out.Smoothing)
	fmt.Printf("Undefined rows:  %.1f%%\n", out.UndefinedShare*100)

	fmt.Printf("\nTop outgoing transitions:\n")
	for _, from := range states {
		tops, ok := top[from]
		if !ok {
			fmt.Printf("  %-12s (no outgoing observations)\n", from)
			continue
		}
		fmt.Printf("  %-12s", from)
		for _, t := range tops {
			fmt.Printf("  %s %.4f", t.To, t.Prob)
		}
		fmt.Println()
	}
	return nil
}

// topOutgoing returns the k highest-probability cells of a row, ties broken
// by label so the output is stable.
func topOutgoing(row map[string]float64, k int) []topTransition {
	tops := make([]topTransition, 0, len(row))
	for to, p := range row {
		tops = append(tops, topTransition{To: to, Prob: p})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Prob != tops[j].Prob {
			return tops[i].Prob > tops[j].Prob
		}
		return tops[i].To < tops[j].To
	})
	if len(tops) > k {
		tops = tops[:k]
	}
	return tops
}

// #endregion detail-mode

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
