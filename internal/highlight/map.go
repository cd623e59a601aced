// Package highlight maintains the per-cell validation state of a check-in form
// and the row and parent colors aggregated from it.
//
// Map is an immutable value: every operation returns a new Map and leaves the
// receiver untouched, so callers thread the latest value explicitly.
package highlight

import (
	"sort"

	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"
)

// Kind is the visual classification of a cell.
type Kind string

const (
	// KindNone marks a cell that has not been validated, or was reset.
	KindNone    Kind = ""
	KindSuccess Kind = "success"
	KindDanger  Kind = "danger"
)

// Color is the aggregated classification of a row or parent row.
type Color string

// ColorDanger is the only color a row can carry; absence means no error.
const ColorDanger Color = "danger"

// Placement positions a cell icon. Inline grid edits render the icon inside
// the cell; dialog edits render it beside the value.
type Placement string

const (
	PlacementInside Placement = "inside"
	PlacementBeside Placement = "beside"
)

// Entry is the highlight of one field of one row.
type Entry struct {
	Kind          Kind      `json:"type,omitempty"`
	ShowIcon      bool      `json:"icon,omitempty"`
	IconPlacement Placement `json:"iconPlacement,omitempty"`
	Message       string    `json:"message,omitempty"`
	InlineEditing bool      `json:"isInlineEditing"`
	HasError      bool      `json:"hasError"`
}

// Key addresses one cell.
type Key struct {
	Field    domain.Field
	ParentID string
	RowID    string
}

func keyOf(field domain.Field, ref domain.RowRef) Key {
	return Key{Field: field, ParentID: ref.ParentID, RowID: ref.RowID}
}

// Map pairs the cell highlights with error counters per row id and per parent
// id. Colors are derived from the counters, so a row is danger exactly when
// at least one of its cells has an error, and a parent is danger exactly when
// at least one cell of any row under it has an error.
type Map struct {
	entries map[Key]Entry
	rowErrs map[string]int
	parErrs map[string]int
}

// New returns an empty map.
func New() Map {
	return Map{
		entries: map[Key]Entry{},
		rowErrs: map[string]int{},
		parErrs: map[string]int{},
	}
}

func (m Map) clone() Map {
	cp := Map{
		entries: make(map[Key]Entry, len(m.entries)),
		rowErrs: make(map[string]int, len(m.rowErrs)),
		parErrs: make(map[string]int, len(m.parErrs)),
	}
	for k, v := range m.entries {
		cp.entries[k] = v
	}
	for k, v := range m.rowErrs {
		cp.rowErrs[k] = v
	}
	for k, v := range m.parErrs {
		cp.parErrs[k] = v
	}
	return cp
}

// Update applies fn to a private copy of m and returns the copy. Use it to
// batch many operations into one copy.
func (m Map) Update(fn func(tx *Txn)) Map {
	cp := m.clone()
	fn(&Txn{m: &cp})
	return cp
}

// SetState writes the highlight of field for ref: danger when message is
// non-empty, success otherwise.
func (m Map) SetState(field domain.Field, ref domain.RowRef, message string, showIcon bool) Map {
	return m.Update(func(tx *Txn) { tx.SetState(field, ref, message, showIcon) })
}

// SetDanger marks field of ref as an error with an icon.
func (m Map) SetDanger(field domain.Field, message string, ref domain.RowRef) Map {
	return m.Update(func(tx *Txn) { tx.SetDanger(field, message, ref) })
}

// ResetState clears any error of field for ref. Barcode cells may be reset to
// an explicit success instead of the unvalidated state.
func (m Map) ResetState(field domain.Field, ref domain.RowRef, setSuccess bool) Map {
	return m.Update(func(tx *Txn) { tx.ResetState(field, ref, setSuccess) })
}

// SetInlineEditing flags a cell as edited directly in the grid.
func (m Map) SetInlineEditing(field domain.Field, ref domain.RowRef, inline bool) Map {
	return m.Update(func(tx *Txn) { tx.SetInlineEditing(field, ref, inline) })
}

// DeleteRow removes every cell of ref. Individual refs remove the whole
// parent.
func (m Map) DeleteRow(ref domain.RowRef) Map {
	return m.Update(func(tx *Txn) { tx.DeleteRow(ref) })
}

// Validator is the subset of the validation engine the map needs.
type Validator interface {
	ValidateField(field domain.Field, row domain.Row) validation.Findings
	ValidateRow(row domain.Row) validation.Findings
}

// ValidateFieldAndSetState validates field of row and writes every finding.
// Coupled fields reported by the validator are re-derived in the same call.
func (m Map) ValidateFieldAndSetState(v Validator, field domain.Field, row domain.Row) Map {
	return m.Update(func(tx *Txn) { tx.ApplyFindings(row.Ref(), v.ValidateField(field, row)) })
}

// ValidateRow validates every field of row and writes the findings.
func (m Map) ValidateRow(v Validator, row domain.Row) Map {
	return m.Update(func(tx *Txn) { tx.ApplyFindings(row.Ref(), v.ValidateRow(row)) })
}

// Entry returns the highlight of field for ref.
func (m Map) Entry(field domain.Field, ref domain.RowRef) (Entry, bool) {
	e, ok := m.entries[keyOf(field, ref)]
	return e, ok
}

// Color returns the aggregated color of a row or parent id.
func (m Map) Color(id string) Color {
	if m.rowErrs[id] > 0 || m.parErrs[id] > 0 {
		return ColorDanger
	}
	return ""
}

// Colors returns every id currently in danger.
func (m Map) Colors() map[string]Color {
	out := make(map[string]Color)
	for id, n := range m.rowErrs {
		if n > 0 {
			out[id] = ColorDanger
		}
	}
	for id, n := range m.parErrs {
		if n > 0 {
			out[id] = ColorDanger
		}
	}
	return out
}

// HasDanger reports whether any cell has an error.
func (m Map) HasDanger() bool {
	for _, n := range m.rowErrs {
		if n > 0 {
			return true
		}
	}
	return false
}

// Highlights returns a copy of every cell entry.
func (m Map) Highlights() map[Key]Entry {
	out := make(map[Key]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Errors returns the error messages of ref keyed by field.
func (m Map) Errors(ref domain.RowRef) map[domain.Field]string {
	out := make(map[domain.Field]string)
	for k, e := range m.entries {
		if e.HasError && k.ParentID == ref.ParentID && k.RowID == ref.RowID {
			out[k.Field] = e.Message
		}
	}
	return out
}

// DangerKeys returns every cell in error, sorted for stable output.
func (m Map) DangerKeys() []Key {
	var out []Key
	for k, e := range m.entries {
		if e.HasError {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.RowID != b.RowID {
			return a.RowID < b.RowID
		}
		return a.Field < b.Field
	})
	return out
}

// Len returns the number of cell entries.
func (m Map) Len() int { return len(m.entries) }
