package domain

import "fmt"

// Identify derives the address of the component at childIndex within the
// order at rowIndex. Group orders address components by their own id under
// the order id; individual orders use the order id for both levels.
//
// Out-of-range indices are a programming error and panic.
func Identify(b Batch, rowIndex, childIndex int) RowRef {
	if rowIndex < 0 || rowIndex >= len(b.Orders) {
		panic(fmt.Sprintf("domain: order index %d out of range [0,%d)", rowIndex, len(b.Orders)))
	}
	order := b.Orders[rowIndex]
	if childIndex < 0 || childIndex >= len(order.Components) {
		panic(fmt.Sprintf("domain: component index %d out of range [0,%d) in order %s", childIndex, len(order.Components), order.ID))
	}
	if b.Kind == KindIndividual {
		return RowRef{ParentID: order.ID, RowID: order.ID}
	}
	return RowRef{ParentID: order.ID, RowID: order.Components[childIndex].RowID}
}
