// Package uniqueness coordinates asynchronous barcode uniqueness validation.
// A validation pass is one round trip for every eligible row; the response is
// applied only to rows whose barcode still matches the validated value.
package uniqueness

import (
	"context"
	"errors"
	"fmt"

	"labcheckin/internal/highlight"
	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"
)

// MsgDuplicate marks a barcode already in use.
const MsgDuplicate = "Duplicate"

// ErrFormatPending is returned when a barcode in the batch fails its local
// format rule; no round trip is made until the input is well formed.
var ErrFormatPending = errors.New("uniqueness: barcode format errors pending")

// Candidates returns the rows eligible for uniqueness validation: a
// non-empty barcode and a known lab. Rows without a lab are left
// under-determined.
func Candidates(b domain.Batch) ([]domain.BarcodeCandidate, error) {
	var out []domain.BarcodeCandidate
	for _, row := range b.Rows() {
		value := row.Form.Barcode.Value
		if value == "" {
			continue
		}
		if msg := validation.BarcodeFormat(value); msg != "" {
			return nil, fmt.Errorf("%w: row %s: %s", ErrFormatPending, row.Ref(), msg)
		}
		if row.LabID == "" {
			continue
		}
		out = append(out, domain.BarcodeCandidate{RowRef: row.Ref(), Value: value, LabID: row.LabID})
	}
	return out, nil
}

// Coordinator issues validation passes against a source.
type Coordinator struct {
	source domain.UniquenessSource
}

// NewCoordinator constructs a coordinator over source.
func NewCoordinator(source domain.UniquenessSource) *Coordinator {
	return &Coordinator{source: source}
}

// Validate runs one pass for the batch. It returns no verdicts and no error
// when nothing is eligible.
func (c *Coordinator) Validate(ctx context.Context, b domain.Batch) ([]domain.BarcodeVerdict, error) {
	candidates, err := Candidates(b)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	verdicts, err := c.source.ValidateBarcodes(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("validate barcodes: %w", err)
	}
	return verdicts, nil
}

// Apply writes verdicts into a copy of the batch and the map. Verdicts for
// rows that no longer exist, or whose barcode or lab changed since the
// request was dispatched, are discarded. It returns the number of verdicts
// applied.
func Apply(b domain.Batch, m highlight.Map, verdicts []domain.BarcodeVerdict) (domain.Batch, highlight.Map, int) {
	if len(verdicts) == 0 {
		return b, m, 0
	}
	out := b.Clone()
	applied := 0
	m = m.Update(func(tx *highlight.Txn) {
		for _, v := range verdicts {
			row, ok := out.Find(v.RowRef)
			if !ok || row.Form.Barcode.Value != v.Value || row.LabID != v.LabID {
				continue
			}
			applied++
			out.UpdateRow(v.RowRef, func(r *domain.Row) {
				if v.Valid {
					r.Form.Mark(domain.FieldBarcode, "")
					return
				}
				r.Form.Mark(domain.FieldBarcode, MsgDuplicate)
			})
			if v.Valid {
				tx.ResetState(domain.FieldBarcode, v.RowRef, true)
				continue
			}
			tx.SetDanger(domain.FieldBarcode, MsgDuplicate, v.RowRef)
		}
	})
	return out, m, applied
}
