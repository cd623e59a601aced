package form

import (
	"labcheckin/internal/bulk"
	"labcheckin/internal/highlight"
	"labcheckin/pkg/domain"
)

// IsEntireFormValid reports whether no row or parent is in danger, hidden
// rows included.
func (f *Form) IsEntireFormValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded && !f.state.Highlights.HasDanger()
}

// Colors returns the row and parent color classes.
func (f *Form) Colors() map[string]highlight.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Highlights.Colors()
}

// Highlights returns every highlight entry.
func (f *Form) Highlights() map[highlight.Key]highlight.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Highlights.Highlights()
}

// Batch returns a copy of the rows.
func (f *Form) Batch() domain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Batch.Clone()
}

// Row returns a copy of the row addressed by ref.
func (f *Form) Row(ref domain.RowRef) (domain.Row, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Batch.Find(ref)
}

// Dirty reports whether the form has unsaved changes.
func (f *Form) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// ErrorsOnly reports whether the error-only view is on.
func (f *Form) ErrorsOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errorsOnly
}

// VisibleRows returns the rows currently shown: rows under collapsed groups
// are hidden, and while the error-only view is on only rows in it are shown.
func (f *Form) VisibleRows() []domain.RowRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visibleLocked()
}

func (f *Form) visibleLocked() []domain.RowRef {
	var out []domain.RowRef
	for _, row := range f.state.Batch.Rows() {
		ref := row.Ref()
		if !f.sel.Visible(ref) {
			continue
		}
		if f.errorsOnly && !f.shown[ref.RowID] {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// SetSelected selects or deselects a row by id.
func (f *Form) SetSelected(rowID string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.sel.Selected[rowID] = true
		return
	}
	delete(f.sel.Selected, rowID)
}

// SelectAll selects every row.
func (f *Form) SelectAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.state.Batch.Rows() {
		f.sel.Selected[row.RowID] = true
	}
}

// ClearSelection deselects every row.
func (f *Form) ClearSelection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sel.Selected = map[string]bool{}
}

// SetCollapsed collapses or expands a group.
func (f *Form) SetCollapsed(parentID string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.sel.Collapsed[parentID] = true
		return
	}
	delete(f.sel.Collapsed, parentID)
}

// selection returns the selection bulk operations act on: rows hidden by the
// error-only view are not targets. Callers hold f.mu.
func (f *Form) selection() bulk.Selection {
	if !f.errorsOnly {
		return f.sel
	}
	sel := bulk.Selection{Selected: map[string]bool{}, Collapsed: f.sel.Collapsed}
	for id := range f.sel.Selected {
		if f.shown[id] {
			sel.Selected[id] = true
		}
	}
	return sel
}
