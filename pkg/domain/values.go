package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldValue is a typed value for exactly one field. The set of
// implementations is closed; switch on the concrete type to handle each field.
type FieldValue interface {
	Field() Field
	fieldValue()
}

type (
	// Label sets FieldLabel.
	Label string
	// LotNumber sets FieldLotNo.
	LotNumber string
	// Barcode sets FieldBarcode.
	Barcode string
	// ContainerTypeID sets FieldContainerType.
	ContainerTypeID string
)

// Volume sets FieldVolumePerContainer.
type Volume struct{ decimal.Decimal }

// Mass sets FieldMassPerContainer.
type Mass struct{ decimal.Decimal }

// LocationAssignment sets FieldLocation together with the lab owning it.
// An empty ID clears the location but keeps the row's lab.
type LocationAssignment struct {
	ID    string
	LabID string
}

func (Label) Field() Field              { return FieldLabel }
func (LotNumber) Field() Field          { return FieldLotNo }
func (Barcode) Field() Field            { return FieldBarcode }
func (ContainerTypeID) Field() Field    { return FieldContainerType }
func (Volume) Field() Field             { return FieldVolumePerContainer }
func (Mass) Field() Field               { return FieldMassPerContainer }
func (LocationAssignment) Field() Field { return FieldLocation }

func (Label) fieldValue()              {}
func (LotNumber) fieldValue()          {}
func (Barcode) fieldValue()            {}
func (ContainerTypeID) fieldValue()    {}
func (Volume) fieldValue()             {}
func (Mass) fieldValue()               {}
func (LocationAssignment) fieldValue() {}

// Apply writes v into the row. The field's validity is left untouched;
// validation runs separately.
func (r *Row) Apply(v FieldValue) {
	switch v := v.(type) {
	case Label:
		r.Form.Label.Value = string(v)
	case LotNumber:
		r.Form.LotNo.Value = string(v)
	case Barcode:
		r.Form.Barcode.Value = string(v)
	case ContainerTypeID:
		r.Form.ContainerType.Value = string(v)
	case Volume:
		r.Form.VolumePerContainer.Value = v.Decimal
	case Mass:
		r.Form.MassPerContainer.Value = v.Decimal
	case LocationAssignment:
		r.Form.Location.Value = v.ID
		if v.LabID != "" {
			r.LabID = v.LabID
		}
	default:
		panic(fmt.Sprintf("domain: unhandled field value %T", v))
	}
}

// Value returns the current value of field as a FieldValue.
func (r Row) Value(field Field) FieldValue {
	switch field {
	case FieldLabel:
		return Label(r.Form.Label.Value)
	case FieldLotNo:
		return LotNumber(r.Form.LotNo.Value)
	case FieldBarcode:
		return Barcode(r.Form.Barcode.Value)
	case FieldContainerType:
		return ContainerTypeID(r.Form.ContainerType.Value)
	case FieldVolumePerContainer:
		return Volume{r.Form.VolumePerContainer.Value}
	case FieldMassPerContainer:
		return Mass{r.Form.MassPerContainer.Value}
	case FieldLocation:
		return LocationAssignment{ID: r.Form.Location.Value, LabID: r.LabID}
	default:
		panic(fmt.Sprintf("domain: unknown field %q", field))
	}
}

// ErrNotPastable is returned by ParseValue for fields that cannot be filled
// from plain text.
var ErrNotPastable = errors.New("field cannot be filled from text")

// ParseValue converts raw text into a FieldValue for field. Empty quantities
// parse as zero.
func ParseValue(field Field, raw string) (FieldValue, error) {
	switch field {
	case FieldLabel:
		return Label(raw), nil
	case FieldLotNo:
		return LotNumber(raw), nil
	case FieldBarcode:
		return Barcode(raw), nil
	case FieldContainerType:
		return ContainerTypeID(strings.TrimSpace(raw)), nil
	case FieldVolumePerContainer, FieldMassPerContainer:
		d, err := parseQuantity(raw)
		if err != nil {
			return nil, err
		}
		if field == FieldVolumePerContainer {
			return Volume{d}, nil
		}
		return Mass{d}, nil
	case FieldLocation:
		return nil, fmt.Errorf("%s: %w", field, ErrNotPastable)
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity %q: %w", raw, err)
	}
	return d, nil
}
