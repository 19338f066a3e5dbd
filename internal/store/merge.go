package store

import "bidio/internal/models"

// SetFlag selects the merge policy of Store.Set
type SetFlag struct {
	// Update marks a caller-driven partial update: protected fields are
	// dropped unless Force is also set.
	Update bool
	Force  bool
	// Defaults are laid under the document when the id is not stored yet.
	Defaults models.Doc
}

// Insert builds a new document from defaults overlaid by doc. Unforced
// updates cannot seed protected fields; those keep their defaults.
func Insert(defaults, doc models.Doc, flag SetFlag, protected map[string]bool) models.Doc {
	out := defaults.Clone()
	if out == nil {
		out = models.Doc{}
	}
	for k, v := range doc.Clone() {
		if flag.Update && !flag.Force && protected[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// Merge copies the fields of partial into a copy of current. The id is
// never rewritten; protected fields are skipped for unforced updates.
func Merge(current, partial models.Doc, flag SetFlag, protected map[string]bool) models.Doc {
	out := current.Clone()
	if out == nil {
		out = models.Doc{}
	}
	for k, v := range partial.Clone() {
		if k == models.FieldID {
			continue
		}
		if flag.Update && !flag.Force && protected[k] {
			continue
		}
		out[k] = v
	}
	return out
}
