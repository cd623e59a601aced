package bulk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"labcheckin/internal/highlight"
	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"

	"github.com/shopspring/decimal"
)

var tubes = domain.ContainerTypes{
	"vendor-tube": {ID: "vendor-tube", MaxVolume: decimal.NewFromInt(3500), MaxMass: decimal.NewFromInt(7000)},
	"a1-vial":     {ID: "a1-vial", MaxVolume: decimal.NewFromInt(50000), MaxMass: decimal.NewFromInt(100000)},
}

func component(id string) domain.Row {
	r := domain.Row{RowRef: domain.RowRef{RowID: id}, LabID: "lab1"}
	r.Form.ContainerType.Value = "vendor-tube"
	r.Form.VolumePerContainer.Value = decimal.NewFromInt(100)
	return r
}

func kitState(ids ...string) State {
	var rows []domain.Row
	for _, id := range ids {
		rows = append(rows, component(id))
	}
	b := domain.Batch{Kind: domain.KindGroup, Orders: []domain.Order{{ID: "k1", Components: rows}}}
	b.Stamp()
	return ValidateAll(State{Batch: b, Highlights: highlight.New()}, validation.NewDefaultEngine(tubes))
}

func soloState(ids ...string) State {
	b := domain.Batch{Kind: domain.KindIndividual}
	for _, id := range ids {
		b.Orders = append(b.Orders, domain.Order{ID: id, Components: []domain.Row{component(id)}})
	}
	b.Stamp()
	return ValidateAll(State{Batch: b, Highlights: highlight.New()}, validation.NewDefaultEngine(tubes))
}

func kitRef(id string) domain.RowRef { return domain.RowRef{ParentID: "k1", RowID: id} }

func selectAll(s State) Selection {
	sel := Selection{Selected: map[string]bool{}, Collapsed: map[string]bool{}}
	for _, r := range s.Batch.Rows() {
		sel.Selected[r.RowID] = true
	}
	return sel
}

func TestEditContainerTypeRevalidatesQuantities(t *testing.T) {
	engine := validation.NewDefaultEngine(tubes)
	s := kitState("c1")
	s.Batch.UpdateRow(kitRef("c1"), func(r *domain.Row) {
		r.Form.VolumePerContainer.Value = decimal.NewFromInt(20000)
	})
	s = ValidateAll(s, engine)
	if e, _ := s.Highlights.Entry(domain.FieldVolumePerContainer, kitRef("c1")); e.Message != "Must be between 0μl and 3500μl" {
		t.Fatalf("expected capacity error, got %+v", e)
	}

	out, err := Edit(s, kitRef("c1"), domain.ContainerTypeID("a1-vial"), engine, true)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if out.Revalidate {
		t.Fatalf("container type edits do not need a uniqueness pass")
	}
	if out.State.Highlights.HasDanger() {
		t.Fatalf("expected quantities cleared, got %v", out.State.Highlights.DangerKeys())
	}
	row, _ := out.State.Batch.Find(kitRef("c1"))
	if row.Form.VolumePerContainer.Valid != domain.Valid {
		t.Fatalf("volume validity not updated: %v", row.Form.VolumePerContainer.Valid)
	}
	if e, _ := out.State.Highlights.Entry(domain.FieldContainerType, kitRef("c1")); !e.InlineEditing {
		t.Fatalf("expected inline editing flag")
	}
	// the input state is untouched
	if old, _ := s.Batch.Find(kitRef("c1")); old.Form.ContainerType.Value != "vendor-tube" {
		t.Fatalf("edit mutated its input")
	}
}

func TestEditUnknownRow(t *testing.T) {
	s := kitState("c1")
	if _, err := Edit(s, kitRef("nope"), domain.Label("x"), validation.NewDefaultEngine(tubes), true); !errors.Is(err, ErrUnknownRow) {
		t.Fatalf("expected ErrUnknownRow, got %v", err)
	}
}

func TestEditBarcodeStaysUnvalidated(t *testing.T) {
	s := kitState("c1")
	out, err := Edit(s, kitRef("c1"), domain.Barcode("ABC-1"), validation.NewDefaultEngine(tubes), true)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !out.Revalidate {
		t.Fatalf("barcode edit must request a uniqueness pass")
	}
	row, _ := out.State.Batch.Find(kitRef("c1"))
	if row.Form.Barcode.Valid != domain.Unvalidated {
		t.Fatalf("expected unvalidated barcode, got %v", row.Form.Barcode.Valid)
	}

	out, _ = Edit(out.State, kitRef("c1"), domain.Barcode("bad code"), validation.NewDefaultEngine(tubes), true)
	row, _ = out.State.Batch.Find(kitRef("c1"))
	if row.Form.Barcode.Valid != domain.Invalid || row.Form.Barcode.Error != validation.MsgBarcodeCharacters {
		t.Fatalf("expected format error, got %+v", row.Form.Barcode)
	}
}

func TestAssignFieldSkipsUnknown(t *testing.T) {
	s := kitState("c1", "c2")
	out := AssignField(s, []domain.RowRef{kitRef("c1"), kitRef("gone")}, domain.Label("a,b"), validation.NewDefaultEngine(tubes))
	if out.State.Highlights.Color("c1") != highlight.ColorDanger {
		t.Fatalf("expected c1 danger")
	}
	if out.State.Highlights.Color("c2") != "" {
		t.Fatalf("c2 must be unaffected")
	}
}

func TestTargetsRespectCollapsedGroups(t *testing.T) {
	s := kitState("c1", "c2", "c3")
	sel := selectAll(s)
	sel.Collapsed["k1"] = true

	if got := sel.Targets(s.Batch); len(got) != 0 {
		t.Fatalf("collapsed rows must not be targets, got %v", got)
	}
	if plan := PlanDeletion(s, sel); plan.Count != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}

	solo := soloState("o1", "o2")
	sel = selectAll(solo)
	sel.Collapsed["o1"] = true
	if got := sel.Targets(solo.Batch); len(got) != 2 {
		t.Fatalf("individual rows are always visible, got %v", got)
	}
}

func TestDeletionPlanAndApply(t *testing.T) {
	s := kitState("c1", "c2")
	s.Highlights = s.Highlights.SetDanger(domain.FieldLabel, "bad", kitRef("c1"))
	sel := Selection{Selected: map[string]bool{"c1": true}}

	plan := PlanDeletion(s, sel)
	if plan.Count != 1 || plan.Message != "Are you sure you want to delete 1 row?" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	out, err := ApplyDeletion(s, plan)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.State.Batch.Len() != 1 {
		t.Fatalf("expected one row left, got %d", out.State.Batch.Len())
	}
	if out.State.Highlights.Color("k1") != "" || out.State.Highlights.Color("c1") != "" {
		t.Fatalf("deleted row still colored: %v", out.State.Highlights.Colors())
	}

	if _, err := ApplyDeletion(out.State, plan); !errors.Is(err, ErrStalePlan) {
		t.Fatalf("expected ErrStalePlan, got %v", err)
	}
}

func TestDeletionPrunesEmptyGroups(t *testing.T) {
	s := kitState("c1")
	out, err := ApplyDeletion(s, PlanDeletion(s, selectAll(s)))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.State.Batch.Orders) != 0 || out.State.Highlights.Len() != 0 {
		t.Fatalf("expected empty form, got %+v / %d entries", out.State.Batch, out.State.Highlights.Len())
	}
}

type boxLocations struct {
	cells map[string]domain.Location
	calls int
}

func newBox(n int) *boxLocations {
	b := &boxLocations{cells: map[string]domain.Location{
		"shelf": {ID: "shelf", LabID: "lab2"},
	}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("box1-%d", i)
		b.cells[id] = domain.Location{ID: id, ParentID: "box1", LabID: "lab2", BoxCell: true, Index: i}
	}
	return b
}

func (b *boxLocations) Location(_ context.Context, id string) (domain.Location, error) {
	loc, ok := b.cells[id]
	if !ok {
		return domain.Location{}, fmt.Errorf("location %s not found", id)
	}
	return loc, nil
}

func (b *boxLocations) NextAvailableCells(_ context.Context, boxID string, n int, prohibited []string) ([]domain.Location, error) {
	b.calls++
	taken := map[string]bool{}
	for _, id := range prohibited {
		taken[id] = true
	}
	var free []domain.Location
	for _, loc := range b.cells {
		if loc.ParentID == boxID && loc.BoxCell && !taken[loc.ID] {
			free = append(free, loc)
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Index < free[j].Index })
	if len(free) > n {
		free = free[:n]
	}
	return free, nil
}

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("dup-%d", n)
	}
}

func TestDuplicateGroupRowsAdvanceCells(t *testing.T) {
	s := kitState("c1", "c2")
	for i, id := range []string{"c1", "c2"} {
		loc := fmt.Sprintf("box1-%d", i)
		s.Batch.UpdateRow(kitRef(id), func(r *domain.Row) {
			r.Form.Location.Value = loc
			r.Form.Label.Value = "keep?"
			r.Form.Barcode = domain.FieldState[string]{Value: "B" + id, Valid: domain.Valid}
		})
	}
	box := newBox(3)

	out, err := Duplicate(context.Background(), s, selectAll(s), box, validation.NewDefaultEngine(tubes), sequentialIDs())
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if !out.Revalidate {
		t.Fatalf("duplication must request a uniqueness pass")
	}
	rows := out.State.Batch.Rows()
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.RowID)
	}
	if strings.Join(ids, ",") != "c1,dup-1,c2,dup-2" {
		t.Fatalf("unexpected order %v", ids)
	}

	dup1, dup2 := rows[1], rows[3]
	if dup1.Form.Location.Value != "box1-2" {
		t.Fatalf("first copy should take the free cell, got %q", dup1.Form.Location.Value)
	}
	if dup2.Form.Location.Value != "" {
		t.Fatalf("full box should leave the location empty, got %q", dup2.Form.Location.Value)
	}
	if dup1.LabID != "lab2" {
		t.Fatalf("copy should move to the cell's lab, got %q", dup1.LabID)
	}
	for _, d := range []domain.Row{dup1, dup2} {
		if d.Form.Barcode.Value != "" || d.Form.Barcode.Valid != domain.Unvalidated || d.Form.Label.Value != "" {
			t.Fatalf("copy kept barcode or label: %+v", d.Form)
		}
		if d.ParentID != "k1" {
			t.Fatalf("copy has wrong parent %q", d.ParentID)
		}
	}

	seen := map[string]bool{}
	for _, r := range rows {
		loc := r.Form.Location.Value
		if loc == "" {
			continue
		}
		if seen[loc] {
			t.Fatalf("cell %s assigned twice", loc)
		}
		seen[loc] = true
	}
}

func TestDuplicateIndividualKeepsSharedLocation(t *testing.T) {
	s := soloState("o1", "o2")
	s.Batch.UpdateRow(domain.RowRef{ParentID: "o1", RowID: "o1"}, func(r *domain.Row) {
		r.Form.Location.Value = "shelf"
	})
	sel := Selection{Selected: map[string]bool{"o1": true}}

	out, err := Duplicate(context.Background(), s, sel, newBox(0), validation.NewDefaultEngine(tubes), sequentialIDs())
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	orders := out.State.Batch.Orders
	if len(orders) != 3 || orders[1].ID != "dup-1" {
		t.Fatalf("expected copy right after its source, got %+v", orders)
	}
	copyRow := orders[1].Components[0]
	if copyRow.Ref() != (domain.RowRef{ParentID: "dup-1", RowID: "dup-1"}) {
		t.Fatalf("copy identity not stamped: %v", copyRow.Ref())
	}
	if copyRow.Form.Location.Value != "shelf" {
		t.Fatalf("non-cell locations are shared, got %q", copyRow.Form.Location.Value)
	}
}

func TestDuplicateLocationError(t *testing.T) {
	s := kitState("c1")
	s.Batch.UpdateRow(kitRef("c1"), func(r *domain.Row) { r.Form.Location.Value = "missing" })
	_, err := Duplicate(context.Background(), s, selectAll(s), newBox(1), validation.NewDefaultEngine(tubes), sequentialIDs())
	if err == nil {
		t.Fatalf("expected location lookup error")
	}
}

func TestPasteFill(t *testing.T) {
	engine := validation.NewDefaultEngine(tubes)
	s := kitState("c1", "c2", "c3")
	view := []domain.RowRef{kitRef("c1"), kitRef("c2"), kitRef("c3")}

	out, err := PasteFill(s, view, 1, domain.FieldVolumePerContainer, "250\r\nlots\r\n", engine)
	if err != nil {
		t.Fatalf("paste: %v", err)
	}
	c2, _ := out.State.Batch.Find(kitRef("c2"))
	if !c2.Form.VolumePerContainer.Value.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %v", c2.Form.VolumePerContainer.Value)
	}
	c3, _ := out.State.Batch.Find(kitRef("c3"))
	if !c3.Form.VolumePerContainer.Value.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unparsable line must keep the previous value, got %v", c3.Form.VolumePerContainer.Value)
	}
	if e, _ := out.State.Highlights.Entry(domain.FieldVolumePerContainer, kitRef("c3")); e.Message != validation.MsgNotANumber {
		t.Fatalf("expected number error, got %+v", e)
	}
	c1, _ := out.State.Batch.Find(kitRef("c1"))
	if !c1.Form.VolumePerContainer.Value.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("rows before start must be untouched")
	}
}

func TestPasteBarcodesSanitized(t *testing.T) {
	s := kitState("c1", "c2")
	view := []domain.RowRef{kitRef("c1"), kitRef("c2")}
	out, err := PasteFill(s, view, 0, domain.FieldBarcode, " AB-1\t\nCD-2\x00\nEXTRA", validation.NewDefaultEngine(tubes))
	if err != nil {
		t.Fatalf("paste: %v", err)
	}
	if !out.Revalidate {
		t.Fatalf("barcode paste must request a uniqueness pass")
	}
	got := []string{}
	for _, r := range out.State.Batch.Rows() {
		got = append(got, r.Form.Barcode.Value)
	}
	if strings.Join(got, ",") != "AB-1,CD-2" {
		t.Fatalf("unexpected barcodes %v", got)
	}
}

func TestPasteRejectsLocation(t *testing.T) {
	s := kitState("c1")
	_, err := PasteFill(s, []domain.RowRef{kitRef("c1")}, 0, domain.FieldLocation, "x", validation.NewDefaultEngine(tubes))
	if !errors.Is(err, domain.ErrNotPastable) {
		t.Fatalf("expected ErrNotPastable, got %v", err)
	}
}

func TestResetReturnsPrivateCopy(t *testing.T) {
	initial := kitState("c1")
	s := Reset(initial)
	s.Batch.UpdateRow(kitRef("c1"), func(r *domain.Row) { r.Form.Label.Value = "changed" })
	if row, _ := initial.Batch.Find(kitRef("c1")); row.Form.Label.Value != "" {
		t.Fatalf("reset shared state with the snapshot")
	}
}
