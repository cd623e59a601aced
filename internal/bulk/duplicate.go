package bulk

import (
	"context"
	"fmt"
	"sort"

	"labcheckin/internal/highlight"
	"labcheckin/pkg/domain"
)

// IDFunc mints identities for duplicated rows.
type IDFunc func() string

// Duplicate copies every selected, visible row. Each copy gets a fresh
// identity, an empty unvalidated barcode and an empty label, and is inserted
// right after its source. Copies of rows stored in a box cell move to the
// next free cell of the same box; cells claimed by the form or by earlier
// copies in the same call are never reused. When a box is full the copy has
// no location.
func Duplicate(ctx context.Context, s State, sel Selection, locations domain.LocationSource, v Validator, newID IDFunc) (Outcome, error) {
	targets := sel.Targets(s.Batch)
	if len(targets) == 0 {
		return Outcome{State: s}, nil
	}
	wanted := make(map[domain.RowRef]bool, len(targets))
	for _, ref := range targets {
		wanted[ref] = true
	}
	alloc := newCellAllocator(locations, s.Batch.AssignedLocations())

	src := s.Batch
	b := domain.Batch{Kind: src.Kind}
	var created []domain.RowRef
	for _, order := range src.Orders {
		if src.Kind == domain.KindIndividual {
			b.Orders = append(b.Orders, cloneOrder(order))
			row := order.Components[0]
			if !wanted[row.Ref()] {
				continue
			}
			dup, err := duplicateRow(ctx, row, alloc)
			if err != nil {
				return Outcome{State: s}, err
			}
			id := newID()
			b.Orders = append(b.Orders, domain.Order{
				ID:                  id,
				OrderableMaterialID: order.OrderableMaterialID,
				Components:          []domain.Row{dup},
			})
			created = append(created, domain.RowRef{ParentID: id, RowID: id})
			continue
		}

		next := domain.Order{ID: order.ID, OrderableMaterialID: order.OrderableMaterialID}
		for _, row := range order.Components {
			next.Components = append(next.Components, row)
			if !wanted[row.Ref()] {
				continue
			}
			dup, err := duplicateRow(ctx, row, alloc)
			if err != nil {
				return Outcome{State: s}, err
			}
			dup.RowID = newID()
			next.Components = append(next.Components, dup)
			created = append(created, domain.RowRef{ParentID: order.ID, RowID: dup.RowID})
		}
		b.Orders = append(b.Orders, next)
	}
	b.Stamp()

	m := s.Highlights.Update(func(tx *highlight.Txn) {
		for _, ref := range created {
			row, _ := b.Find(ref)
			Record(b, tx, ref, v.ValidateRow(row))
		}
	})
	return Outcome{State: State{Batch: b, Highlights: m}, Revalidate: true}, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Components = append([]domain.Row(nil), o.Components...)
	return o
}

func duplicateRow(ctx context.Context, row domain.Row, alloc *cellAllocator) (domain.Row, error) {
	dup := row
	dup.Form.Barcode = domain.FieldState[string]{}
	dup.Form.Label = domain.FieldState[string]{}
	if row.Form.Location.Value == "" {
		return dup, nil
	}
	loc, ok, err := alloc.next(ctx, row.Form.Location.Value)
	if err != nil {
		return domain.Row{}, err
	}
	if !ok {
		dup.Form.Location = domain.FieldState[string]{}
		return dup, nil
	}
	dup.Form.Location = domain.FieldState[string]{Value: loc.ID}
	if loc.LabID != "" {
		dup.LabID = loc.LabID
	}
	return dup, nil
}

// cellAllocator hands out free box cells, accumulating the claimed cells so
// no cell is handed out twice.
type cellAllocator struct {
	source     domain.LocationSource
	prohibited map[string]bool
}

func newCellAllocator(source domain.LocationSource, claimed []string) *cellAllocator {
	a := &cellAllocator{source: source, prohibited: make(map[string]bool, len(claimed))}
	for _, id := range claimed {
		a.prohibited[id] = true
	}
	return a
}

// next returns the location a copy of a row stored at locationID should use.
// Locations that are not box cells are shared; ok is false when the box has
// no free cell left.
func (a *cellAllocator) next(ctx context.Context, locationID string) (domain.Location, bool, error) {
	if a.source == nil {
		return domain.Location{}, false, fmt.Errorf("duplicate: no location source for %s", locationID)
	}
	loc, err := a.source.Location(ctx, locationID)
	if err != nil {
		return domain.Location{}, false, fmt.Errorf("resolve location %s: %w", locationID, err)
	}
	if !loc.BoxCell {
		return loc, true, nil
	}
	cells, err := a.source.NextAvailableCells(ctx, loc.ParentID, 1, a.prohibitedIDs())
	if err != nil {
		return domain.Location{}, false, fmt.Errorf("next cell of %s: %w", loc.ParentID, err)
	}
	if len(cells) == 0 {
		return domain.Location{}, false, nil
	}
	a.prohibited[cells[0].ID] = true
	return cells[0], true, nil
}

func (a *cellAllocator) prohibitedIDs() []string {
	out := make([]string, 0, len(a.prohibited))
	for id := range a.prohibited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
