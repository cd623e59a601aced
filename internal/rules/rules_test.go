package rules

import (
	"context"
	"errors"
	"testing"

	"labcheckin/pkg/domain"

	"github.com/shopspring/decimal"
)

type stubView struct {
	barcodes  map[string]bool
	locations map[string]bool
}

func (v stubView) FindContainerByBarcode(lab, barcode string) (domain.Container, bool) {
	if v.barcodes[lab+"/"+barcode] {
		return domain.Container{Barcode: barcode, LabID: lab}, true
	}
	return domain.Container{}, false
}

func (v stubView) FindContainerByLocation(id string) (domain.Container, bool) {
	if v.locations[id] {
		return domain.Container{LocationID: id}, true
	}
	return domain.Container{}, false
}

type stubLocations map[string]domain.Location

func (s stubLocations) Location(_ context.Context, id string) (domain.Location, error) {
	if id == "broken" {
		return domain.Location{}, errors.New("lookup failed")
	}
	loc, ok := s[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound{Entity: "location", ID: id}
	}
	return loc, nil
}

func (s stubLocations) NextAvailableCells(context.Context, string, int, []string) ([]domain.Location, error) {
	return nil, nil
}

var (
	types = domain.ContainerTypes{"tube": {ID: "tube", MaxVolume: decimal.NewFromInt(10), MaxMass: decimal.NewFromInt(10)}}
	locs  = stubLocations{
		"cell-1": {ID: "cell-1", ParentID: "box", BoxCell: true},
		"cell-2": {ID: "cell-2", ParentID: "box", BoxCell: true},
		"shelf":  {ID: "shelf"},
	}
)

func container(i int, barcode, location string) domain.ContainerCheckIn {
	return domain.ContainerCheckIn{
		ComponentIndex:     i,
		Barcode:            barcode,
		LocationID:         location,
		LabID:              "lab1",
		ContainerTypeID:    "tube",
		VolumePerContainer: decimal.NewFromInt(1),
	}
}

func TestDefaultRulesEngine(t *testing.T) {
	engine := NewDefaultRulesEngine(types, locs)
	view := stubView{
		barcodes:  map[string]bool{"lab1/taken": true},
		locations: map[string]bool{"cell-1": true},
	}
	tests := []struct {
		name  string
		req   domain.CheckInRequest
		want  map[int]domain.Field
		block bool
	}{
		{
			name: "clean order",
			req:  domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{container(0, "fresh", "shelf"), container(1, "", "shelf")}},
		},
		{
			name:  "barcode already checked in",
			req:   domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{container(0, "ok", ""), container(1, "taken", "")}},
			want:  map[int]domain.Field{1: domain.FieldBarcode},
			block: true,
		},
		{
			name:  "barcode repeated in order",
			req:   domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{container(0, "dup", ""), container(1, "dup", "")}},
			want:  map[int]domain.Field{0: domain.FieldBarcode, 1: domain.FieldBarcode},
			block: true,
		},
		{
			name:  "occupied and repeated cells",
			req:   domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{container(0, "", "cell-1"), container(1, "", "cell-2"), container(2, "", "cell-2")}},
			want:  map[int]domain.Field{0: domain.FieldLocation, 2: domain.FieldLocation},
			block: true,
		},
		{
			name:  "unknown location",
			req:   domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{container(0, "", "nowhere")}},
			want:  map[int]domain.Field{0: domain.FieldLocation},
			block: true,
		},
		{
			name:  "field validators re-run",
			req:   domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{{ComponentIndex: 0, Label: "a/b", ContainerTypeID: "tube", VolumePerContainer: decimal.NewFromInt(1)}}},
			want:  map[int]domain.Field{0: domain.FieldLabel},
			block: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Evaluate(context.Background(), view, tt.req)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if res.HasBlocking() != tt.block {
				t.Fatalf("blocking=%v, want %v: %+v", res.HasBlocking(), tt.block, res.Violations)
			}
			got := map[int]domain.Field{}
			for _, v := range res.Violations {
				got[v.ComponentIndex] = v.Field
			}
			if len(got) != len(tt.want) {
				t.Fatalf("violations %v, want %v", got, tt.want)
			}
			for i, f := range tt.want {
				if got[i] != f {
					t.Fatalf("component %d: field %q, want %q", i, got[i], f)
				}
			}
		})
	}
}

func TestOccupancyLookupError(t *testing.T) {
	rule := BoxCellOccupancyRule(locs)
	req := domain.CheckInRequest{OrderID: "o1", Containers: []domain.ContainerCheckIn{container(0, "", "broken")}}
	if _, err := rule.Evaluate(context.Background(), stubView{}, req); err == nil {
		t.Fatalf("expected lookup error")
	}
}

func TestOrderErrorsFromViolations(t *testing.T) {
	engine := NewDefaultRulesEngine(types, nil)
	req := domain.CheckInRequest{OrderID: "o9", Containers: []domain.ContainerCheckIn{container(0, "taken", "")}}
	res, err := engine.Evaluate(context.Background(), stubView{barcodes: map[string]bool{"lab1/taken": true}}, req)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	oes := res.OrderErrors()
	if len(oes) != 1 || oes[0].OrderID != "o9" || oes[0].Errors[0][domain.FieldBarcode][0] != MsgBarcodeTaken {
		t.Fatalf("unexpected order errors %+v", oes)
	}
}
