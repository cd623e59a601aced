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

// OrderInput is one order to check in.
type OrderInput struct {
	ID                  string
	OrderableMaterialID string
	LabID               string
	LocationID          string
	// Initial values keyed by component index, applied over the material
	// defaults.
	Initial map[int][]domain.FieldValue
}

// LoadRequest describes the orders a form edits.
type LoadRequest struct {
	Orders             []OrderInput
	ValidateUniqueness bool
}

// Load fetches the materials of every order, builds the rows, validates
// them and records the result as the reset snapshot. A fetch failure is
// reported to the notifier and leaves the form unloaded.
func (f *Form) Load(ctx context.Context, req LoadRequest) error {
	return f.run(ctx, "load", func(ctx context.Context) error {
		ids := make([]string, 0, len(req.Orders))
		for _, o := range req.Orders {
			ids = append(ids, o.OrderableMaterialID)
		}
		materials, err := f.deps.Materials.Materials(ctx, ids)
		if err != nil {
			f.notify(ctx, domain.NotifyError, "Failed to load materials")
			return fmt.Errorf("load materials: %w", err)
		}
		batch, err := buildBatch(req.Orders, materials)
		if err != nil {
			f.notify(ctx, domain.NotifyError, "Failed to load materials")
			return err
		}
		state := bulk.ValidateAll(bulk.State{Batch: batch, Highlights: highlight.New()}, f.validator)

		f.sched.Stop()
		f.mu.Lock()
		f.state = state
		f.initial = state.Clone()
		f.sel = emptySelection()
		f.shown = make(map[string]bool)
		f.dirty = false
		f.loaded = true
		f.refreshView()
		f.mu.Unlock()
		f.logger.Info("check-in form loaded", "orders", len(batch.Orders), "rows", batch.Len(), "kind", batch.Kind)

		if req.ValidateUniqueness {
			if err := f.ValidateUniqueness(ctx); err != nil && !errors.Is(err, uniqueness.ErrFormatPending) {
				return err
			}
		}
		return nil
	})
}

func buildBatch(orders []OrderInput, materials map[string]domain.MaterialRecord) (domain.Batch, error) {
	var b domain.Batch
	for _, in := range orders {
		rec, ok := materials[in.OrderableMaterialID]
		if !ok {
			return domain.Batch{}, fmt.Errorf("load materials: %w", domain.ErrNotFound{Entity: "material", ID: in.OrderableMaterialID})
		}
		if len(rec.Components) == 0 {
			return domain.Batch{}, fmt.Errorf("load materials: material %s has no components", rec.OrderableMaterialID)
		}
		kind := rec.Kind
		if kind == "" {
			kind = domain.KindIndividual
		}
		if b.Kind == "" {
			b.Kind = kind
		} else if b.Kind != kind {
			return domain.Batch{}, fmt.Errorf("%w: order %s", ErrMixedKinds, in.ID)
		}
		comps := rec.Components
		if kind == domain.KindIndividual {
			comps = comps[:1]
		}
		order := domain.Order{ID: in.ID, OrderableMaterialID: in.OrderableMaterialID}
		for i, c := range comps {
			row := domain.Row{
				RowRef:           domain.RowRef{ParentID: in.ID, RowID: in.ID + "-" + c.ID},
				Resource:         c.Resource,
				VendorMaterialID: c.VendorMaterialID,
				LabID:            in.LabID,
				Units:            c.Units,
			}
			row.Form.ContainerType.Value = c.ContainerTypeID
			row.Form.VolumePerContainer.Value = c.VolumePerContainer
			row.Form.MassPerContainer.Value = c.MassPerContainer
			row.Form.Location.Value = in.LocationID
			for _, v := range in.Initial[i] {
				if loc, ok := v.(domain.LocationAssignment); ok && loc.LabID == "" {
					loc.LabID = in.LabID
					v = loc
				}
				row.Apply(v)
			}
			order.Components = append(order.Components, row)
		}
		b.Orders = append(b.Orders, order)
	}
	b.Stamp()
	return b, nil
}
