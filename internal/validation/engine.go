package validation

import (
	"slices"

	"labcheckin/pkg/domain"
)

// Findings maps each field a rule reported on to its message; "" means valid.
type Findings map[domain.Field]string

// Merge folds other into f. The first non-empty message for a field wins.
func (f Findings) Merge(other Findings) {
	for field, msg := range other {
		if existing, ok := f[field]; ok && existing != "" {
			continue
		}
		f[field] = msg
	}
}

// Invalid reports whether any field carries a message.
func (f Findings) Invalid() bool {
	for _, msg := range f {
		if msg != "" {
			return true
		}
	}
	return false
}

// Rule validates a row. Triggers lists the fields whose change requires the
// rule to run again; the returned findings may cover other fields too, which
// is how coupled fields are re-derived together.
type Rule interface {
	Name() string
	Triggers() []domain.Field
	Evaluate(row domain.Row, types domain.ContainerTypeLookup) Findings
}

// Engine dispatches field edits to the rules they trigger.
type Engine struct {
	rules []Rule
	types domain.ContainerTypeLookup
}

// NewEngine constructs an engine without rules.
func NewEngine(types domain.ContainerTypeLookup) *Engine {
	return &Engine{types: types}
}

// NewDefaultEngine builds an engine with the built-in field rules.
func NewDefaultEngine(types domain.ContainerTypeLookup) *Engine {
	e := NewEngine(types)
	e.Register(NewLabelRule())
	e.Register(NewLotNumberRule())
	e.Register(NewBarcodeFormatRule())
	e.Register(NewContainerTypeRule())
	e.Register(NewVolumeMassRule())
	return e
}

// Register appends a rule to the engine.
func (e *Engine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// ContainerTypes exposes the lookup used by the rules.
func (e *Engine) ContainerTypes() domain.ContainerTypeLookup {
	return e.types
}

// ValidateField runs every rule triggered by field against row.
func (e *Engine) ValidateField(field domain.Field, row domain.Row) Findings {
	out := Findings{}
	for _, rule := range e.rules {
		if slices.Contains(rule.Triggers(), field) {
			out.Merge(rule.Evaluate(row, e.types))
		}
	}
	return out
}

// ValidateRow runs every rule against row.
func (e *Engine) ValidateRow(row domain.Row) Findings {
	out := Findings{}
	for _, rule := range e.rules {
		out.Merge(rule.Evaluate(row, e.types))
	}
	return out
}

type fieldRule struct {
	name  string
	field domain.Field
	check func(row domain.Row, types domain.ContainerTypeLookup) string
}

func (r fieldRule) Name() string              { return r.name }
func (r fieldRule) Triggers() []domain.Field { return []domain.Field{r.field} }
func (r fieldRule) Evaluate(row domain.Row, types domain.ContainerTypeLookup) Findings {
	return Findings{r.field: r.check(row, types)}
}

// NewLabelRule validates the label character set.
func NewLabelRule() Rule {
	return fieldRule{name: "label_format", field: domain.FieldLabel, check: func(row domain.Row, _ domain.ContainerTypeLookup) string {
		return Label(row.Form.Label.Value)
	}}
}

// NewLotNumberRule validates the lot number character set.
func NewLotNumberRule() Rule {
	return fieldRule{name: "lot_number_format", field: domain.FieldLotNo, check: func(row domain.Row, _ domain.ContainerTypeLookup) string {
		return LotNumber(row.Form.LotNo.Value)
	}}
}

// NewBarcodeFormatRule validates the barcode character set. Uniqueness is
// checked asynchronously elsewhere.
func NewBarcodeFormatRule() Rule {
	return fieldRule{name: "barcode_format", field: domain.FieldBarcode, check: func(row domain.Row, _ domain.ContainerTypeLookup) string {
		return BarcodeFormat(row.Form.Barcode.Value)
	}}
}

// NewContainerTypeRule requires a known, non-retired container type.
func NewContainerTypeRule() Rule {
	return fieldRule{name: "container_type", field: domain.FieldContainerType, check: func(row domain.Row, types domain.ContainerTypeLookup) string {
		return ContainerType(row.Form.ContainerType.Value, types)
	}}
}

type volumeMassRule struct{}

// NewVolumeMassRule returns the paired quantity rule. It runs when either
// quantity or the container type changes and always reports both quantities.
func NewVolumeMassRule() Rule { return volumeMassRule{} }

func (volumeMassRule) Name() string { return "volume_mass_capacity" }

func (volumeMassRule) Triggers() []domain.Field {
	return []domain.Field{domain.FieldVolumePerContainer, domain.FieldMassPerContainer, domain.FieldContainerType}
}

func (volumeMassRule) Evaluate(row domain.Row, types domain.ContainerTypeLookup) Findings {
	vol, mass := VolumeAndMass(
		row.Form.VolumePerContainer.Value,
		row.Form.MassPerContainer.Value,
		row.Form.ContainerType.Value,
		types,
		row.Units,
	)
	return Findings{
		domain.FieldVolumePerContainer: vol,
		domain.FieldMassPerContainer:   mass,
	}
}
