package bulk

import (
	"fmt"
	"strings"

	"labcheckin/internal/highlight"
	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"
)

// PasteFill writes one line of payload into each consecutive row of view,
// starting at start. Lines beyond the last row are ignored. Barcodes are
// sanitized before they are stored. A quantity line that does not parse
// leaves the previous value in place and flags the cell.
func PasteFill(s State, view []domain.RowRef, start int, field domain.Field, payload string, v Validator) (Outcome, error) {
	if field == domain.FieldLocation {
		return Outcome{State: s}, fmt.Errorf("paste %s: %w", field, domain.ErrNotPastable)
	}
	if start < 0 || start >= len(view) {
		return Outcome{State: s}, fmt.Errorf("%w: paste start %d outside %d visible rows", ErrUnknownRow, start, len(view))
	}
	lines := splitLines(payload)
	if len(lines) == 0 {
		return Outcome{State: s}, nil
	}

	b := s.Batch.Clone()
	m := s.Highlights.Update(func(tx *highlight.Txn) {
		for i, line := range lines {
			if start+i >= len(view) {
				break
			}
			ref := view[start+i]
			if _, ok := b.Find(ref); !ok {
				continue
			}
			if field == domain.FieldBarcode {
				line = validation.SanitizeBarcode(line)
			}
			value, err := domain.ParseValue(field, line)
			if err != nil {
				tx.SetDanger(field, validation.MsgNotANumber, ref)
				b.UpdateRow(ref, func(r *domain.Row) { r.Form.Mark(field, validation.MsgNotANumber) })
				continue
			}
			tx.SetInlineEditing(field, ref, false)
			assign(b, tx, ref, value, v)
		}
	})
	return Outcome{State: State{Batch: b, Highlights: m}, Revalidate: revalidates(field)}, nil
}

func splitLines(payload string) []string {
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	if payload == "" {
		return nil
	}
	lines := strings.Split(payload, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
