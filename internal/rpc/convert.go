package rpc

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/minodes/hmm-filter/internal/filter"
	"github.com/minodes/hmm-filter/internal/transition"
)

// Wire shapes. Everything rides on structpb so the service needs no
// generated bindings; the field names below are the contract.
//
//	Fit request:      {rows: [{session_id, timestamp, label}], smoothing?}
//	Fit response:     {model_id, states: [..], observed}
//	Predict request:  {rows: [{session_id, timestamp, emissions: {label: p}}]}
//	Predict response: {run_id, labels: [..], failed: {session_id: reason}}
//	ActiveModel resp: {model_id, parent_id, created_at, states, transitions, smoothing, observed}

// #region encode

func observationsToValue(obs []transition.Observation) *structpb.Value {
	vals := make([]*structpb.Value, len(obs))
	for i, o := range obs {
		vals[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"session_id": structpb.NewStringValue(o.SessionID),
			"timestamp":  structpb.NewNumberValue(float64(o.Timestamp)),
			"label":      structpb.NewStringValue(o.Label),
		}})
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func rowsToValue(rows []filter.Row) *structpb.Value {
	vals := make([]*structpb.Value, len(rows))
	for i, r := range rows {
		em := make(map[string]*structpb.Value, len(r.Emissions))
		for label, p := range r.Emissions {
			em[label] = structpb.NewNumberValue(p)
		}
		vals[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"session_id": structpb.NewStringValue(r.SessionID),
			"timestamp":  structpb.NewNumberValue(float64(r.Timestamp)),
			"emissions":  structpb.NewStructValue(&structpb.Struct{Fields: em}),
		}})
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func stringsToValue(ss []string) *structpb.Value {
	vals := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vals[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func probsToValue(probs map[string]map[string]float64) *structpb.Value {
	rows := make(map[string]*structpb.Value, len(probs))
	for from, row := range probs {
		cells := make(map[string]*structpb.Value, len(row))
		for to, p := range row {
			cells[to] = structpb.NewNumberValue(p)
		}
		rows[from] = structpb.NewStructValue(&structpb.Struct{Fields: cells})
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: rows})
}

// #endregion encode

// #region decode

func observationsFromStruct(in *structpb.Struct) ([]transition.Observation, error) {
	list := in.GetFields()["rows"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("missing rows list")
	}
	obs := make([]transition.Observation, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		row := v.GetStructValue()
		if row == nil {
			return nil, fmt.Errorf("row %d: not an object", i)
		}
		f := row.GetFields()
		obs = append(obs, transition.Observation{
			SessionID: f["session_id"].GetStringValue(),
			Timestamp: int64(f["timestamp"].GetNumberValue()),
			Label:     f["label"].GetStringValue(),
		})
	}
	return obs, nil
}

func rowsFromStruct(in *structpb.Struct) ([]filter.Row, error) {
	list := in.GetFields()["rows"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("missing rows list")
	}
	rows := make([]filter.Row, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("row %d: not an object", i)
		}
		f := obj.GetFields()
		var em map[string]float64
		if es := f["emissions"].GetStructValue(); es != nil {
			em = make(map[string]float64, len(es.GetFields()))
			for label, pv := range es.GetFields() {
				em[label] = pv.GetNumberValue()
			}
		}
		rows = append(rows, filter.Row{
			SessionID: f["session_id"].GetStringValue(),
			Timestamp: int64(f["timestamp"].GetNumberValue()),
			Emissions: em,
		})
	}
	return rows, nil
}

func stringsFromValue(v *structpb.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, lv := range list.GetValues() {
		out = append(out, lv.GetStringValue())
	}
	return out
}

func probsFromValue(v *structpb.Value) map[string]map[string]float64 {
	obj := v.GetStructValue()
	if obj == nil {
		return nil
	}
	probs := make(map[string]map[string]float64, len(obj.GetFields()))
	for from, rv := range obj.GetFields() {
		rowObj := rv.GetStructValue()
		if rowObj == nil {
			continue
		}
		row := make(map[string]float64, len(rowObj.GetFields()))
		for to, pv := range rowObj.GetFields() {
			row[to] = pv.GetNumberValue()
		}
		probs[from] = row
	}
	return probs
}

func failedFromValue(v *structpb.Value) map[string]string {
	obj := v.GetStructValue()
	if obj == nil || len(obj.GetFields()) == 0 {
		return nil
	}
	failed := make(map[string]string, len(obj.GetFields()))
	for session, rv := range obj.GetFields() {
		failed[session] = rv.GetStringValue()
	}
	return failed
}

// #endregion decode

// sortedSessions lists a failed map's session ids deterministically for
// log fields; the per-session reasons live in the response and the run row.
func sortedSessions(failed map[string]error) []string {
	out := make([]string, 0, len(failed))
	for session := range failed {
		out = append(out, session)
	}
	sort.Strings(out)
	return out
}
