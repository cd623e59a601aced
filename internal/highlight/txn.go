package highlight

import (
	"sort"

	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"
)

// Txn mutates a private copy of a Map inside Map.Update. It must not escape
// the callback.
type Txn struct {
	m *Map
}

func placementFor(inline bool) Placement {
	if inline {
		return PlacementInside
	}
	return PlacementBeside
}

func (tx *Txn) count(k Key, delta int) {
	adjust(tx.m.rowErrs, k.RowID, delta)
	adjust(tx.m.parErrs, k.ParentID, delta)
}

func adjust(counts map[string]int, id string, delta int) {
	n := counts[id] + delta
	if n <= 0 {
		delete(counts, id)
		return
	}
	counts[id] = n
}

func (tx *Txn) put(k Key, e Entry) {
	if prev, ok := tx.m.entries[k]; ok && prev.HasError {
		tx.count(k, -1)
	}
	tx.m.entries[k] = e
	if e.HasError {
		tx.count(k, 1)
	}
}

func (tx *Txn) remove(k Key) {
	prev, ok := tx.m.entries[k]
	if !ok {
		return
	}
	if prev.HasError {
		tx.count(k, -1)
	}
	delete(tx.m.entries, k)
}

// SetState writes the highlight of field for ref: danger when message is
// non-empty, success otherwise. The inline-editing flag of an existing cell
// is kept.
func (tx *Txn) SetState(field domain.Field, ref domain.RowRef, message string, showIcon bool) {
	k := keyOf(field, ref)
	prev := tx.m.entries[k]
	e := Entry{Kind: KindSuccess, InlineEditing: prev.InlineEditing}
	if message != "" {
		e.Kind = KindDanger
		e.Message = message
		e.HasError = true
	}
	if showIcon {
		e.ShowIcon = true
		e.IconPlacement = placementFor(prev.InlineEditing)
	}
	tx.put(k, e)
}

// SetDanger marks field of ref as an error with an icon.
func (tx *Txn) SetDanger(field domain.Field, message string, ref domain.RowRef) {
	tx.SetState(field, ref, message, true)
}

// ResetState clears the error of field for ref. A barcode reset with
// setSuccess shows the success checkmark; every other reset returns the cell
// to the unvalidated state.
func (tx *Txn) ResetState(field domain.Field, ref domain.RowRef, setSuccess bool) {
	k := keyOf(field, ref)
	prev, had := tx.m.entries[k]
	if field == domain.FieldBarcode && setSuccess {
		tx.put(k, Entry{
			Kind:          KindSuccess,
			ShowIcon:      true,
			IconPlacement: placementFor(prev.InlineEditing),
			InlineEditing: prev.InlineEditing,
		})
		return
	}
	if !had {
		return
	}
	tx.put(k, Entry{InlineEditing: prev.InlineEditing})
}

// SetInlineEditing flags a cell as edited directly in the grid.
func (tx *Txn) SetInlineEditing(field domain.Field, ref domain.RowRef, inline bool) {
	k := keyOf(field, ref)
	e := tx.m.entries[k]
	e.InlineEditing = inline
	if e.ShowIcon {
		e.IconPlacement = placementFor(inline)
	}
	tx.put(k, e)
}

// DeleteRow removes every cell of ref. For an individual ref the whole parent
// is removed. Counters that drop to zero are deleted, which clears the
// parent's color when none of its remaining rows is in error.
func (tx *Txn) DeleteRow(ref domain.RowRef) {
	for k := range tx.m.entries {
		if k.ParentID != ref.ParentID {
			continue
		}
		if ref.Individual() || k.RowID == ref.RowID {
			tx.remove(k)
		}
	}
}

// ApplyFindings writes validator findings for ref: danger for each message,
// reset for each field reported valid.
func (tx *Txn) ApplyFindings(ref domain.RowRef, findings validation.Findings) {
	fields := make([]domain.Field, 0, len(findings))
	for f := range findings {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	for _, f := range fields {
		if msg := findings[f]; msg != "" {
			tx.SetDanger(f, msg, ref)
			continue
		}
		tx.ResetState(f, ref, false)
	}
}
