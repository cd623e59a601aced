// Package domain defines the check-in rows, field state, value types and
// collaborator contracts shared by the labcheckin engine.
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Field identifies an editable cell of a check-in row.
type Field string

// Editable check-in fields.
const (
	// FieldLabel is the free-text container label.
	FieldLabel Field = "label"
	// FieldLotNo is the vendor lot number.
	FieldLotNo Field = "lot_no"
	// FieldBarcode is the globally unique container barcode.
	FieldBarcode Field = "barcode"
	// FieldVolumePerContainer is the liquid volume held by each container.
	FieldVolumePerContainer Field = "volume_per_container"
	// FieldMassPerContainer is the solid mass held by each container.
	FieldMassPerContainer Field = "mass_per_container"
	// FieldContainerType is the container type id.
	FieldContainerType Field = "container_type"
	// FieldLocation is the storage location id.
	FieldLocation Field = "location"
)

// Fields lists every editable field in display order.
var Fields = []Field{
	FieldLabel,
	FieldLotNo,
	FieldBarcode,
	FieldVolumePerContainer,
	FieldMassPerContainer,
	FieldContainerType,
	FieldLocation,
}

// Quantity reports whether the field holds a volume or mass.
func (f Field) Quantity() bool {
	return f == FieldVolumePerContainer || f == FieldMassPerContainer
}

// Validity is the tri-state validation outcome of a field. Unvalidated is
// distinct from Invalid: an unvalidated field renders neither success nor danger.
type Validity int8

const (
	Unvalidated Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unvalidated"
	}
}

// MarshalJSON encodes Unvalidated as null and the others as booleans.
func (v Validity) MarshalJSON() ([]byte, error) {
	switch v {
	case Valid:
		return []byte("true"), nil
	case Invalid:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, true or false.
func (v *Validity) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode validity: %w", err)
	}
	switch {
	case b == nil:
		*v = Unvalidated
	case *b:
		*v = Valid
	default:
		*v = Invalid
	}
	return nil
}

// FieldState pairs a field value with its validation outcome.
type FieldState[T any] struct {
	Value T        `json:"value"`
	Valid Validity `json:"isValid"`
	Error string   `json:"error,omitempty"`
}

// Form holds the editable state of one row.
type Form struct {
	Label              FieldState[string]          `json:"label"`
	LotNo              FieldState[string]          `json:"lot_no"`
	Barcode            FieldState[string]          `json:"barcode"`
	VolumePerContainer FieldState[decimal.Decimal] `json:"volume_per_container"`
	MassPerContainer   FieldState[decimal.Decimal] `json:"mass_per_container"`
	ContainerType      FieldState[string]          `json:"container_type"`
	Location           FieldState[string]          `json:"location"`
}

// Mark records the validation outcome of field. An empty message marks the
// field valid; otherwise it is invalid with that message.
func (f *Form) Mark(field Field, message string) {
	v := Valid
	if message != "" {
		v = Invalid
	}
	f.setValidity(field, v, message)
}

// Unmark returns field to the unvalidated state.
func (f *Form) Unmark(field Field) {
	f.setValidity(field, Unvalidated, "")
}

func (f *Form) setValidity(field Field, v Validity, message string) {
	switch field {
	case FieldLabel:
		f.Label.Valid, f.Label.Error = v, message
	case FieldLotNo:
		f.LotNo.Valid, f.LotNo.Error = v, message
	case FieldBarcode:
		f.Barcode.Valid, f.Barcode.Error = v, message
	case FieldVolumePerContainer:
		f.VolumePerContainer.Valid, f.VolumePerContainer.Error = v, message
	case FieldMassPerContainer:
		f.MassPerContainer.Valid, f.MassPerContainer.Error = v, message
	case FieldContainerType:
		f.ContainerType.Valid, f.ContainerType.Error = v, message
	case FieldLocation:
		f.Location.Valid, f.Location.Error = v, message
	default:
		panic(fmt.Sprintf("domain: unknown field %q", field))
	}
}

// Validity returns the current validation outcome of field.
func (f Form) Validity(field Field) Validity {
	switch field {
	case FieldLabel:
		return f.Label.Valid
	case FieldLotNo:
		return f.LotNo.Valid
	case FieldBarcode:
		return f.Barcode.Valid
	case FieldVolumePerContainer:
		return f.VolumePerContainer.Valid
	case FieldMassPerContainer:
		return f.MassPerContainer.Valid
	case FieldContainerType:
		return f.ContainerType.Valid
	case FieldLocation:
		return f.Location.Valid
	default:
		panic(fmt.Sprintf("domain: unknown field %q", field))
	}
}

// MaterialKind distinguishes single-container orders from grouped kits.
type MaterialKind string

const (
	// KindIndividual orders hold exactly one component; parent and row ids coincide.
	KindIndividual MaterialKind = "individual"
	// KindGroup orders own an ordered collection of components.
	KindGroup MaterialKind = "group"
)

// RowRef addresses a row within the two-level order/component hierarchy.
type RowRef struct {
	ParentID string `json:"parent_id"`
	RowID    string `json:"row_id"`
}

// Individual reports whether the reference addresses an individual material row.
func (r RowRef) Individual() bool { return r.ParentID == r.RowID }

func (r RowRef) String() string {
	if r.Individual() {
		return r.RowID
	}
	return r.ParentID + "/" + r.RowID
}

// Units carries the measurement units used in validator messages.
type Units struct {
	Volume string `json:"volume" yaml:"volume"`
	Mass   string `json:"mass" yaml:"mass"`
}

// DefaultUnits are the units used when a material does not specify any.
var DefaultUnits = Units{Volume: "μl", Mass: "mg"}

// Resource is the read-only material identity shown alongside a row.
type Resource struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// Row is one editable order-component pairing.
type Row struct {
	RowRef
	Form             Form     `json:"form"`
	Resource         Resource `json:"resource"`
	VendorMaterialID string   `json:"vendor_material_id,omitempty"`
	LabID            string   `json:"lab_id,omitempty"`
	Units            Units    `json:"units"`
}

// Ref returns the row's address.
func (r Row) Ref() RowRef { return r.RowRef }

// Order is a parent row. Individual orders carry a single component.
type Order struct {
	ID                  string `json:"id"`
	OrderableMaterialID string `json:"orderable_material_id"`
	Components          []Row  `json:"components"`
}

// Batch is the complete row collection edited by one check-in form.
type Batch struct {
	Kind   MaterialKind `json:"kind"`
	Orders []Order      `json:"orders"`
}

// Clone returns a deep copy of the batch. Forms are value types so copying
// the component slices is sufficient.
func (b Batch) Clone() Batch {
	cp := Batch{Kind: b.Kind, Orders: make([]Order, len(b.Orders))}
	for i, o := range b.Orders {
		cp.Orders[i] = o
		cp.Orders[i].Components = append([]Row(nil), o.Components...)
	}
	return cp
}

// Rows returns every row in iteration order.
func (b Batch) Rows() []Row {
	var out []Row
	for _, o := range b.Orders {
		out = append(out, o.Components...)
	}
	return out
}

// Len returns the number of rows.
func (b Batch) Len() int {
	n := 0
	for _, o := range b.Orders {
		n += len(o.Components)
	}
	return n
}

// Locate returns the order and component indices of ref.
func (b Batch) Locate(ref RowRef) (int, int, bool) {
	for i, o := range b.Orders {
		if o.ID != ref.ParentID {
			continue
		}
		for j, c := range o.Components {
			if c.RowID == ref.RowID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// Find returns the row addressed by ref.
func (b Batch) Find(ref RowRef) (Row, bool) {
	i, j, ok := b.Locate(ref)
	if !ok {
		return Row{}, false
	}
	return b.Orders[i].Components[j], true
}

// UpdateRow applies mutate to the row addressed by ref in place. Callers must
// own b (typically a Clone).
func (b Batch) UpdateRow(ref RowRef, mutate func(*Row)) bool {
	i, j, ok := b.Locate(ref)
	if !ok {
		return false
	}
	mutate(&b.Orders[i].Components[j])
	return true
}

// AssignedLocations returns the location ids currently claimed by rows.
func (b Batch) AssignedLocations() []string {
	var out []string
	for _, o := range b.Orders {
		for _, c := range o.Components {
			if c.Form.Location.Value != "" {
				out = append(out, c.Form.Location.Value)
			}
		}
	}
	return out
}

// Stamp rewrites every row's identity from Identify so no caller derives
// identity on its own.
func (b Batch) Stamp() {
	for i := range b.Orders {
		for j := range b.Orders[i].Components {
			b.Orders[i].Components[j].RowRef = Identify(b, i, j)
		}
	}
}

// ContainerType describes the capacity of a physical container.
type ContainerType struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	MaxVolume decimal.Decimal `json:"max_volume" yaml:"max_volume"`
	MaxMass   decimal.Decimal `json:"max_mass" yaml:"max_mass"`
	Retired   bool            `json:"retired" yaml:"retired"`
}

// Location is a storage location. Box cells are sequential slots inside a box
// (ParentID) ordered by Index.
type Location struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	LabID    string `json:"lab_id" yaml:"lab_id"`
	BoxCell  bool   `json:"box_cell" yaml:"box_cell"`
	Index    int    `json:"index" yaml:"index"`
}

// ContainerTypes is a map-backed ContainerTypeLookup keyed by id.
type ContainerTypes map[string]ContainerType

// ContainerType implements ContainerTypeLookup.
func (m ContainerTypes) ContainerType(id string) (ContainerType, bool) {
	ct, ok := m[id]
	return ct, ok
}
