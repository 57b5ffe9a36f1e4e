package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/minodes/hmm-filter/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to hmm_filter.db")
	outPath := flag.String("out", "", "output model JSON path")
	modelID := flag.String("model", "", "model to export (default: active)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: export --db path/to/hmm_filter.db --out model.json [--model id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *outPath, *modelID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

// modelExport is the JSON shape of an exported model. The transitions
// mapping is complete, so the file rebuilds into a working matrix without
// access to the original observations.
type modelExport struct {
	ModelID     string                        `json:"model_id"`
	ParentID    string                        `json:"parent_id,omitempty"`
	CreatedAt   string                        `json:"created_at"`
	States      []string                      `json:"states"`
	Smoothing   float64                       `json:"smoothing"`
	Observed    int64                         `json:"observed"`
	Transitions map[string]map[string]float64 `json:"transitions"`
}

func run(dbPath, outPath, modelID string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	var rec store.ModelRecord
	if modelID != "" {
		rec, err = st.GetModel(modelID)
	} else {
		rec, err = st.GetActive()
	}
	if err != nil {
		return err
	}

	export := modelExport{
		ModelID:     rec.ModelID,
		ParentID:    rec.ParentID,
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
		States:      rec.States,
		Smoothing:   rec.Smoothing,
		Observed:    rec.Observed,
		Transitions: rec.Probs,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote model %s to %s (%d bytes, %d states)\n",
		rec.ModelID, outPath, len(data), len(rec.States))
	return nil
}

// #endregion export
