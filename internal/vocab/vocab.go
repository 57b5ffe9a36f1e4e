// Package vocab holds the label vocabulary shared by the estimator and the
// decoder: the finite set of state labels observed during fitting.
package vocab

import "sort"

// #region vocabulary
// Vocabulary is an insertion-ordered alphabet of state labels. IDs are
// assigned in first-seen order and never change. Once fitting hands a
// vocabulary to a matrix it is treated as read-only, so concurrent readers
// need no locking.
type Vocabulary struct {
	toID  map[string]int
	toStr []string
}

// New returns an empty vocabulary.
func New() *Vocabulary {
	return &Vocabulary{toID: make(map[string]int)}
}

// FromLabels builds a vocabulary from labels in the given order,
// ignoring duplicates.
func FromLabels(labels []string) *Vocabulary {
	v := New()
	for _, l := range labels {
		v.Add(l)
	}
	return v
}

// Add inserts a label if not already present and returns its ID.
func (v *Vocabulary) Add(label string) int {
	if id, ok := v.toID[label]; ok {
		return id
	}
	id := len(v.toStr)
	v.toID[label] = id
	v.toStr = append(v.toStr, label)
	return id
}

// ID returns the ID for a label, or -1 if the label is unknown.
func (v *Vocabulary) ID(label string) int {
	if id, ok := v.toID[label]; ok {
		return id
	}
	return -1
}

// Label returns the label for an ID. Panics on out-of-range IDs,
// which indicates a caller bug.
func (v *Vocabulary) Label(id int) string {
	return v.toStr[id]
}

// Has reports whether the label was observed during fitting.
func (v *Vocabulary) Has(label string) bool {
	_, ok := v.toID[label]
	return ok
}

// Size returns the number of distinct labels.
func (v *Vocabulary) Size() int {
	return len(v.toStr)
}

// Labels returns the labels in lexicographic order. The returned slice is
// a copy; callers may keep or mutate it.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.toStr))
	copy(out, v.toStr)
	sort.Strings(out)
	return out
}

// #endregion vocabulary
