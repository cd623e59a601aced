package form

import (
	"context"
	"errors"
	"fmt"

	"labcheckin/internal/bulk"
	"labcheckin/internal/highlight"
	"labcheckin/internal/uniqueness"
	"labcheckin/pkg/domain"
)

func editKey(ref domain.RowRef, field domain.Field) string {
	return editPrefix + ref.String() + ":" + string(field)
}

// HandleInputChange applies an inline edit to one cell. While the
// error-only view is on, the edit is committed after the edit debounce
// window so a row being corrected does not vanish between keystrokes; each
// new keystroke restarts the window.
func (f *Form) HandleInputChange(ctx context.Context, ref domain.RowRef, value domain.FieldValue) error {
	f.mu.Lock()
	if !f.loaded {
		f.mu.Unlock()
		return ErrNotLoaded
	}
	if _, ok := f.state.Batch.Find(ref); !ok {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", bulk.ErrUnknownRow, ref)
	}
	if f.errorsOnly {
		f.sched.Schedule(editKey(ref, value.Field()), f.editDelay, func() {
			if err := f.commitEdit(ctx, ref, value); err != nil {
				f.logger.Warn("debounced edit dropped", "row", ref.String(), "field", value.Field(), "error", err)
			}
		})
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	return f.commitEdit(ctx, ref, value)
}

func (f *Form) commitEdit(ctx context.Context, ref domain.RowRef, value domain.FieldValue) error {
	return f.run(ctx, "edit", func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		out, err := bulk.Edit(f.state, ref, value, f.validator, true)
		if err != nil {
			return err
		}
		// barcode uniqueness waits for blur, never per keystroke
		if value.Field() == domain.FieldBarcode {
			out.Revalidate = false
		}
		f.install(ctx, out)
		return nil
	})
}

// Flush commits every debounced edit immediately.
func (f *Form) Flush() int {
	return f.sched.FlushAll(editPrefix)
}

// BlurBarcode commits any pending barcode edit of ref and runs a uniqueness
// pass. A batch with barcode format errors is not sent.
func (f *Form) BlurBarcode(ctx context.Context, ref domain.RowRef) error {
	f.sched.Flush(editKey(ref, domain.FieldBarcode))
	if err := f.ValidateUniqueness(ctx); err != nil && !errors.Is(err, uniqueness.ErrFormatPending) {
		return err
	}
	return nil
}

// ValidateUniqueness runs one uniqueness round trip for every eligible row.
// The form is not locked while the request is outstanding; edits made in the
// meantime win over the response.
func (f *Form) ValidateUniqueness(ctx context.Context) error {
	if f.uniq == nil {
		return nil
	}
	return f.run(ctx, "validate_uniqueness", func(ctx context.Context) error {
		f.mu.Lock()
		if !f.loaded {
			f.mu.Unlock()
			return ErrNotLoaded
		}
		batch := f.state.Batch.Clone()
		f.mu.Unlock()

		verdicts, err := f.uniq.Validate(ctx, batch)
		if err != nil {
			if !errors.Is(err, uniqueness.ErrFormatPending) {
				f.notify(ctx, domain.NotifyError, "Barcode validation failed")
			}
			return err
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		b, m, applied := uniqueness.Apply(f.state.Batch, f.state.Highlights, verdicts)
		f.state = bulk.State{Batch: b, Highlights: m}
		f.refreshView()
		if skipped := len(verdicts) - applied; skipped > 0 {
			f.logger.Debug("stale uniqueness verdicts discarded", "count", skipped)
		}
		return nil
	})
}

// SetErrorsOnly toggles the error-only view. Turning it off commits pending
// edits.
func (f *Form) SetErrorsOnly(on bool) {
	if !on {
		f.Flush()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErrorsOnlyLocked(on)
}

func (f *Form) setErrorsOnlyLocked(on bool) {
	f.errorsOnly = on
	f.shown = make(map[string]bool)
	f.sched.CancelAll(hidePrefix)
	if on {
		for _, row := range f.state.Batch.Rows() {
			if f.state.Highlights.Color(row.RowID) == highlight.ColorDanger {
				f.shown[row.RowID] = true
			}
		}
	}
}

// refreshView reconciles the error-only view with the current colors. Rows
// turning danger are shown at once; rows that became valid are hidden after
// the hide window. Callers hold f.mu.
func (f *Form) refreshView() {
	if !f.errorsOnly {
		return
	}
	present := make(map[string]bool)
	for _, row := range f.state.Batch.Rows() {
		id := row.RowID
		present[id] = true
		danger := f.state.Highlights.Color(id) == highlight.ColorDanger
		switch {
		case danger:
			f.shown[id] = true
			f.sched.Cancel(hidePrefix + id)
		case f.shown[id] && !f.sched.Pending(hidePrefix+id):
			f.sched.Schedule(hidePrefix+id, f.hideDelay, func() { f.hide(id) })
		}
	}
	for id := range f.shown {
		if !present[id] {
			delete(f.shown, id)
			f.sched.Cancel(hidePrefix + id)
		}
	}
}

func (f *Form) hide(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Highlights.Color(id) == highlight.ColorDanger {
		return
	}
	delete(f.shown, id)
}
