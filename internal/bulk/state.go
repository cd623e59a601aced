// Package bulk applies multi-row operations to a check-in form. Every
// operation takes a State value and returns a new one; the batch and the
// highlight map are updated together so no partially applied operation is
// observable.
package bulk

import (
	"errors"
	"sort"

	"labcheckin/internal/highlight"
	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"
)

// Errors returned by bulk operations.
var (
	ErrUnknownRow = errors.New("bulk: unknown row")
	ErrStalePlan  = errors.New("bulk: deletion plan no longer matches the form")
)

// State pairs the row collection with its highlight map.
type State struct {
	Batch      domain.Batch
	Highlights highlight.Map
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	return State{Batch: s.Batch.Clone(), Highlights: s.Highlights}
}

// Outcome is the result of a bulk operation. Revalidate is set when barcode
// values or lab assignments may have changed and a uniqueness pass is due.
type Outcome struct {
	State      State
	Revalidate bool
}

// Validator is the validation engine contract used by bulk operations.
type Validator = highlight.Validator

// Selection captures which rows the user selected and which groups are
// collapsed. Selected and visible are tracked separately: a selected row
// under a collapsed group is not a target.
type Selection struct {
	Selected  map[string]bool
	Collapsed map[string]bool
}

// Visible reports whether ref is shown.
func (s Selection) Visible(ref domain.RowRef) bool {
	if ref.Individual() {
		return true
	}
	return !s.Collapsed[ref.ParentID]
}

// Targets returns the selected, visible rows of b in iteration order.
func (s Selection) Targets(b domain.Batch) []domain.RowRef {
	var out []domain.RowRef
	for _, row := range b.Rows() {
		ref := row.Ref()
		if s.Selected[ref.RowID] && s.Visible(ref) {
			out = append(out, ref)
		}
	}
	return out
}

// Record writes findings for ref into the row's form and the highlight
// transaction. A well-formed barcode stays unvalidated until a uniqueness
// pass decides it.
func Record(b domain.Batch, tx *highlight.Txn, ref domain.RowRef, findings validation.Findings) {
	tx.ApplyFindings(ref, findings)
	fields := make([]domain.Field, 0, len(findings))
	for f := range findings {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	b.UpdateRow(ref, func(r *domain.Row) {
		for _, f := range fields {
			msg := findings[f]
			if f == domain.FieldBarcode && msg == "" {
				r.Form.Unmark(f)
				continue
			}
			r.Form.Mark(f, msg)
		}
	})
}

// ValidateAll re-derives every cell of every row. Used on form
// initialization.
func ValidateAll(s State, v Validator) State {
	b := s.Batch.Clone()
	m := s.Highlights.Update(func(tx *highlight.Txn) {
		for _, row := range b.Rows() {
			Record(b, tx, row.Ref(), v.ValidateRow(row))
		}
	})
	return State{Batch: b, Highlights: m}
}

// Reset returns a private copy of the initial snapshot.
func Reset(initial State) State {
	return initial.Clone()
}

func revalidates(field domain.Field) bool {
	return field == domain.FieldBarcode || field == domain.FieldLocation
}
