package bulk

import (
	"fmt"

	"labcheckin/internal/highlight"
	"labcheckin/pkg/domain"
)

// DeletionPlan is a pending deletion awaiting confirmation.
type DeletionPlan struct {
	Refs    []domain.RowRef
	Count   int
	Message string
}

// PlanDeletion collects the selected, visible rows and builds the
// confirmation prompt. Nothing is removed until ApplyDeletion.
func PlanDeletion(s State, sel Selection) DeletionPlan {
	refs := sel.Targets(s.Batch)
	noun := "rows"
	if len(refs) == 1 {
		noun = "row"
	}
	return DeletionPlan{
		Refs:    refs,
		Count:   len(refs),
		Message: fmt.Sprintf("Are you sure you want to delete %d %s?", len(refs), noun),
	}
}

// ApplyDeletion removes the rows of plan together with their highlight
// entries. Group orders left without components are removed as well. A plan
// naming a row that is no longer part of the form fails with ErrStalePlan
// and leaves s untouched.
func ApplyDeletion(s State, plan DeletionPlan) (Outcome, error) {
	if plan.Count == 0 {
		return Outcome{State: s}, nil
	}
	doomed := make(map[domain.RowRef]bool, len(plan.Refs))
	for _, ref := range plan.Refs {
		if _, ok := s.Batch.Find(ref); !ok {
			return Outcome{State: s}, fmt.Errorf("%w: %s", ErrStalePlan, ref)
		}
		doomed[ref] = true
	}

	b := domain.Batch{Kind: s.Batch.Kind}
	var pruned []string
	for _, order := range s.Batch.Orders {
		kept := order
		kept.Components = nil
		for _, row := range order.Components {
			if !doomed[row.Ref()] {
				kept.Components = append(kept.Components, row)
			}
		}
		if len(kept.Components) == 0 {
			if b.Kind == domain.KindGroup {
				pruned = append(pruned, order.ID)
			}
			continue
		}
		b.Orders = append(b.Orders, kept)
	}

	m := s.Highlights.Update(func(tx *highlight.Txn) {
		for _, ref := range plan.Refs {
			tx.DeleteRow(ref)
		}
		for _, id := range pruned {
			tx.DeleteRow(domain.RowRef{ParentID: id, RowID: id})
		}
	})
	return Outcome{State: State{Batch: b, Highlights: m}, Revalidate: true}, nil
}
