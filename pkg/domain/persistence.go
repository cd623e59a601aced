package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ComponentRecord describes one orderable component as returned by the
// material source.
type ComponentRecord struct {
	ID                 string          `json:"id" yaml:"id"`
	Resource           Resource        `json:"resource" yaml:"resource"`
	VendorMaterialID   string          `json:"vendor_material_id,omitempty" yaml:"vendor_material_id,omitempty"`
	ContainerTypeID    string          `json:"container_type_id" yaml:"container_type_id"`
	VolumePerContainer decimal.Decimal `json:"volume_per_container" yaml:"volume_per_container"`
	MassPerContainer   decimal.Decimal `json:"mass_per_container" yaml:"mass_per_container"`
	Units              Units           `json:"units" yaml:"units"`
}

// MaterialRecord is the resolved description of an orderable material.
type MaterialRecord struct {
	OrderableMaterialID string            `json:"orderable_material_id" yaml:"id"`
	Kind                MaterialKind      `json:"kind" yaml:"kind"`
	Components          []ComponentRecord `json:"components" yaml:"components"`
}

// MaterialSource resolves orderable-material ids into material records.
type MaterialSource interface {
	Materials(ctx context.Context, orderableMaterialIDs []string) (map[string]MaterialRecord, error)
}

// LocationSource resolves locations and allocates free box cells.
type LocationSource interface {
	Location(ctx context.Context, id string) (Location, error)
	// NextAvailableCells returns up to n free cells of box in index order,
	// skipping any id in prohibited.
	NextAvailableCells(ctx context.Context, boxID string, n int, prohibited []string) ([]Location, error)
}

// ContainerTypeLookup resolves container types synchronously for validators.
type ContainerTypeLookup interface {
	ContainerType(id string) (ContainerType, bool)
}

// BarcodeCandidate is one row submitted for uniqueness validation.
type BarcodeCandidate struct {
	RowRef
	Value string `json:"value"`
	LabID string `json:"lab_id"`
}

// BarcodeVerdict is the uniqueness outcome for one candidate. Value and LabID
// echo what was validated.
type BarcodeVerdict struct {
	RowRef
	Value string `json:"value"`
	LabID string `json:"lab_id"`
	Valid bool   `json:"is_valid"`
}

// UniquenessSource validates a batch of barcodes in one round trip.
type UniquenessSource interface {
	ValidateBarcodes(ctx context.Context, candidates []BarcodeCandidate) ([]BarcodeVerdict, error)
}

// ContainerCheckIn is one container submitted for check-in.
type ContainerCheckIn struct {
	ComponentIndex     int             `json:"component_index"`
	RowID              string          `json:"row_id"`
	ResourceID         string          `json:"resource_id"`
	Label              string          `json:"label,omitempty"`
	LotNo              string          `json:"lot_no,omitempty"`
	Barcode            string          `json:"barcode,omitempty"`
	VolumePerContainer decimal.Decimal `json:"volume_per_container"`
	MassPerContainer   decimal.Decimal `json:"mass_per_container"`
	ContainerTypeID    string          `json:"container_type"`
	LocationID         string          `json:"location_id,omitempty"`
	LabID              string          `json:"lab_id,omitempty"`
}

// CheckInRequest checks in every container of one order.
type CheckInRequest struct {
	OrderID    string             `json:"order_id"`
	Containers []ContainerCheckIn `json:"containers"`
}

// OrderError reports the rejected components of one order, keyed by
// component index and field.
type OrderError struct {
	OrderID string                     `json:"order_id"`
	Errors  map[int]map[Field][]string `json:"errors"`
}

// Add appends a message for the component and field.
func (e *OrderError) Add(componentIndex int, field Field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[int]map[Field][]string)
	}
	if e.Errors[componentIndex] == nil {
		e.Errors[componentIndex] = make(map[Field][]string)
	}
	e.Errors[componentIndex][field] = append(e.Errors[componentIndex][field], message)
}

// CheckInSink persists check-in requests. Rejected orders are reported through
// the returned OrderErrors; err is reserved for transport failures.
type CheckInSink interface {
	SubmitCheckIns(ctx context.Context, requests []CheckInRequest) ([]OrderError, error)
}

// Container is a checked-in container as persisted by a CheckInSink.
type Container struct {
	ID                 string          `json:"id"`
	OrderID            string          `json:"order_id"`
	RowID              string          `json:"row_id"`
	ResourceID         string          `json:"resource_id"`
	Label              string          `json:"label,omitempty"`
	LotNo              string          `json:"lot_no,omitempty"`
	Barcode            string          `json:"barcode,omitempty"`
	VolumePerContainer decimal.Decimal `json:"volume_per_container"`
	MassPerContainer   decimal.Decimal `json:"mass_per_container"`
	ContainerTypeID    string          `json:"container_type"`
	LocationID         string          `json:"location_id,omitempty"`
	LabID              string          `json:"lab_id,omitempty"`
	CheckedInAt        time.Time       `json:"checked_in_at"`
}

// NotificationLevel classifies user-facing notifications.
type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is a user-facing message raised at the orchestrator boundary.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
