// Package rules holds the server-side check-in rules evaluated by the
// persistence stores before an order is committed.
package rules

import (
	"context"
	"errors"
	"fmt"

	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"
)

// Messages reported by the server-side rules.
const (
	MsgBarcodeTaken    = "has already been taken"
	MsgLocationTaken   = "is already occupied"
	MsgLocationUnknown = "does not exist"
)

// NewDefaultRulesEngine registers the field, barcode uniqueness and box-cell
// occupancy rules. Locations may be nil, which disables occupancy checks.
func NewDefaultRulesEngine(types domain.ContainerTypeLookup, locations domain.LocationSource) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(FieldRule(types))
	engine.Register(BarcodeUniqueRule())
	if locations != nil {
		engine.Register(BoxCellOccupancyRule(locations))
	}
	return engine
}

func block(rule string, req domain.CheckInRequest, c domain.ContainerCheckIn, field domain.Field, msg string) domain.Violation {
	return domain.Violation{
		Rule:           rule,
		Severity:       domain.SeverityBlock,
		Message:        msg,
		OrderID:        req.OrderID,
		ComponentIndex: c.ComponentIndex,
		Field:          field,
	}
}

type fieldRule struct {
	engine *validation.Engine
}

// FieldRule re-runs the form's field validators on every submitted
// container so a client cannot bypass them.
func FieldRule(types domain.ContainerTypeLookup) domain.Rule {
	return fieldRule{engine: validation.NewDefaultEngine(types)}
}

func (fieldRule) Name() string { return "field_validation" }

func (r fieldRule) Evaluate(_ context.Context, _ domain.RuleView, req domain.CheckInRequest) (domain.Result, error) {
	var res domain.Result
	for _, c := range req.Containers {
		findings := r.engine.ValidateRow(rowOf(c))
		for _, field := range domain.Fields {
			if msg := findings[field]; msg != "" {
				res.Violations = append(res.Violations, block(r.Name(), req, c, field, msg))
			}
		}
	}
	return res, nil
}

func rowOf(c domain.ContainerCheckIn) domain.Row {
	var row domain.Row
	row.LabID = c.LabID
	row.Form.Label.Value = c.Label
	row.Form.LotNo.Value = c.LotNo
	row.Form.Barcode.Value = c.Barcode
	row.Form.VolumePerContainer.Value = c.VolumePerContainer
	row.Form.MassPerContainer.Value = c.MassPerContainer
	row.Form.ContainerType.Value = c.ContainerTypeID
	row.Form.Location.Value = c.LocationID
	return row
}

type barcodeUniqueRule struct{}

// BarcodeUniqueRule rejects barcodes already checked in to the same lab and
// barcodes repeated within one order.
func BarcodeUniqueRule() domain.Rule { return barcodeUniqueRule{} }

func (barcodeUniqueRule) Name() string { return "barcode_unique" }

func (r barcodeUniqueRule) Evaluate(_ context.Context, view domain.RuleView, req domain.CheckInRequest) (domain.Result, error) {
	var res domain.Result
	seen := make(map[string]int)
	for _, c := range req.Containers {
		if c.Barcode == "" {
			continue
		}
		seen[c.LabID+"\x00"+c.Barcode]++
	}
	for _, c := range req.Containers {
		if c.Barcode == "" {
			continue
		}
		_, taken := view.FindContainerByBarcode(c.LabID, c.Barcode)
		if taken || seen[c.LabID+"\x00"+c.Barcode] > 1 {
			res.Violations = append(res.Violations, block(r.Name(), req, c, domain.FieldBarcode, MsgBarcodeTaken))
		}
	}
	return res, nil
}

type boxCellOccupancyRule struct {
	locations domain.LocationSource
}

// BoxCellOccupancyRule rejects containers placed in a box cell that already
// holds a container. Other locations hold any number of containers.
func BoxCellOccupancyRule(locations domain.LocationSource) domain.Rule {
	return boxCellOccupancyRule{locations: locations}
}

func (boxCellOccupancyRule) Name() string { return "box_cell_occupancy" }

func (r boxCellOccupancyRule) Evaluate(ctx context.Context, view domain.RuleView, req domain.CheckInRequest) (domain.Result, error) {
	var res domain.Result
	claimed := make(map[string]bool)
	for _, c := range req.Containers {
		if c.LocationID == "" {
			continue
		}
		loc, err := r.locations.Location(ctx, c.LocationID)
		var nf domain.ErrNotFound
		if errors.As(err, &nf) {
			res.Violations = append(res.Violations, block(r.Name(), req, c, domain.FieldLocation, MsgLocationUnknown))
			continue
		}
		if err != nil {
			return domain.Result{}, fmt.Errorf("%s: %w", r.Name(), err)
		}
		if !loc.BoxCell {
			continue
		}
		_, occupied := view.FindContainerByLocation(c.LocationID)
		if occupied || claimed[c.LocationID] {
			res.Violations = append(res.Violations, block(r.Name(), req, c, domain.FieldLocation, MsgLocationTaken))
		}
		claimed[c.LocationID] = true
	}
	return res, nil
}
