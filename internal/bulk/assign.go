package bulk

import (
	"fmt"

	"labcheckin/internal/highlight"
	"labcheckin/pkg/domain"
)

// Edit writes value into one row and re-derives the cells the field
// triggers. Inline edits flag the cell as edited in the grid.
func Edit(s State, ref domain.RowRef, value domain.FieldValue, v Validator, inline bool) (Outcome, error) {
	if _, ok := s.Batch.Find(ref); !ok {
		return Outcome{State: s}, fmt.Errorf("%w: %s", ErrUnknownRow, ref)
	}
	b := s.Batch.Clone()
	m := s.Highlights.Update(func(tx *highlight.Txn) {
		tx.SetInlineEditing(value.Field(), ref, inline)
		assign(b, tx, ref, value, v)
	})
	return Outcome{State: State{Batch: b, Highlights: m}, Revalidate: revalidates(value.Field())}, nil
}

// AssignField writes value into every row of refs, as from an edit dialog.
// Coupled fields are re-derived exactly as for inline edits. Unknown refs are
// skipped.
func AssignField(s State, refs []domain.RowRef, value domain.FieldValue, v Validator) Outcome {
	b := s.Batch.Clone()
	m := s.Highlights.Update(func(tx *highlight.Txn) {
		for _, ref := range refs {
			if _, ok := b.Find(ref); !ok {
				continue
			}
			tx.SetInlineEditing(value.Field(), ref, false)
			assign(b, tx, ref, value, v)
		}
	})
	return Outcome{State: State{Batch: b, Highlights: m}, Revalidate: revalidates(value.Field())}
}

func assign(b domain.Batch, tx *highlight.Txn, ref domain.RowRef, value domain.FieldValue, v Validator) {
	b.UpdateRow(ref, func(r *domain.Row) { r.Apply(value) })
	row, _ := b.Find(ref)
	Record(b, tx, ref, v.ValidateField(value.Field(), row))
}
