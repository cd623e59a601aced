package form

import (
	"context"
	"fmt"
	"slices"

	"labcheckin/internal/bulk"
	"labcheckin/pkg/domain"
)

// AssignField writes value into every selected, visible row.
func (f *Form) AssignField(ctx context.Context, value domain.FieldValue) error {
	return f.run(ctx, "assign_field", func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.loaded {
			return ErrNotLoaded
		}
		targets := f.selection().Targets(f.state.Batch)
		if len(targets) == 0 {
			return nil
		}
		f.install(ctx, bulk.AssignField(f.state, targets, value, f.validator))
		return nil
	})
}

// AssignLocation moves every selected, visible row to locationID and into
// the lab owning it. An empty id clears the location.
func (f *Form) AssignLocation(ctx context.Context, locationID string) error {
	return f.run(ctx, "assign_location", func(ctx context.Context) error {
		value := domain.LocationAssignment{ID: locationID}
		if locationID != "" {
			if f.deps.Locations == nil {
				return fmt.Errorf("assign location: no location source")
			}
			loc, err := f.deps.Locations.Location(ctx, locationID)
			if err != nil {
				return fmt.Errorf("assign location: %w", err)
			}
			value.LabID = loc.LabID
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.loaded {
			return ErrNotLoaded
		}
		targets := f.selection().Targets(f.state.Batch)
		if len(targets) == 0 {
			return nil
		}
		f.install(ctx, bulk.AssignField(f.state, targets, value, f.validator))
		return nil
	})
}

// Duplicate copies every selected, visible row.
func (f *Form) Duplicate(ctx context.Context) error {
	return f.run(ctx, "duplicate", func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.loaded {
			return ErrNotLoaded
		}
		out, err := bulk.Duplicate(ctx, f.state, f.selection(), f.deps.Locations, f.validator, f.newID)
		if err != nil {
			return err
		}
		if out.State.Batch.Len() == f.state.Batch.Len() {
			return nil
		}
		f.install(ctx, out)
		return nil
	})
}

// PrepareDelete builds the confirmation for deleting the selected, visible
// rows.
func (f *Form) PrepareDelete() (bulk.DeletionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return bulk.DeletionPlan{}, ErrNotLoaded
	}
	return bulk.PlanDeletion(f.state, f.selection()), nil
}

// ConfirmDelete applies a plan returned by PrepareDelete.
func (f *Form) ConfirmDelete(ctx context.Context, plan bulk.DeletionPlan) error {
	return f.run(ctx, "delete", func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.loaded {
			return ErrNotLoaded
		}
		if plan.Count == 0 {
			return nil
		}
		out, err := bulk.ApplyDeletion(f.state, plan)
		if err != nil {
			return err
		}
		for _, ref := range plan.Refs {
			delete(f.sel.Selected, ref.RowID)
			f.sched.Cancel(hidePrefix + ref.RowID)
		}
		f.install(ctx, out)
		return nil
	})
}

// Paste fills field of consecutive visible rows from payload, one line per
// row, starting at start.
func (f *Form) Paste(ctx context.Context, start domain.RowRef, field domain.Field, payload string) error {
	return f.run(ctx, "paste", func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.loaded {
			return ErrNotLoaded
		}
		view := f.visibleLocked()
		idx := slices.Index(view, start)
		if idx < 0 {
			return fmt.Errorf("%w: %s is not visible", bulk.ErrUnknownRow, start)
		}
		out, err := bulk.PasteFill(f.state, view, idx, field, payload, f.validator)
		if err != nil {
			return err
		}
		f.install(ctx, out)
		return nil
	})
}

// Reset discards every change since Load, including selection and collapsed
// groups. Pending debounced edits are dropped.
func (f *Form) Reset() error {
	f.sched.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return ErrNotLoaded
	}
	f.state = bulk.Reset(f.initial)
	f.sel = emptySelection()
	f.dirty = false
	f.setErrorsOnlyLocked(f.errorsOnly)
	return nil
}
