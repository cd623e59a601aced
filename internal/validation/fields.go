// Package validation classifies check-in field values. Validators are pure:
// they return a message describing the violation, or "" when the value is
// acceptable, and never fail.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"labcheckin/pkg/domain"

	"github.com/shopspring/decimal"
)

// Validator messages surfaced verbatim to the user.
const (
	MsgCommaNotAllowed   = "Comma not allowed"
	MsgSlashNotAllowed   = "Character '/' not allowed"
	MsgRequired          = "Must be specified"
	MsgVolumeOrMass      = "Must specify either volume or mass"
	MsgNotANumber        = "Must be a number"
	MsgBarcodeCharacters = "Barcode may only contain letters, numbers, '.', '_' and '-'"
)

// Label rejects commas and slashes. An empty label is allowed.
func Label(v string) string {
	switch {
	case strings.Contains(v, ","):
		return MsgCommaNotAllowed
	case strings.Contains(v, "/"):
		return MsgSlashNotAllowed
	}
	return ""
}

// LotNumber rejects commas. An empty lot number is allowed.
func LotNumber(v string) string {
	if strings.Contains(v, ",") {
		return MsgCommaNotAllowed
	}
	return ""
}

// BarcodeFormat checks the barcode character set. Empty barcodes are allowed
// and simply skip uniqueness validation.
func BarcodeFormat(v string) string {
	for _, r := range v {
		if r > unicode.MaxASCII {
			return MsgBarcodeCharacters
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			continue
		}
		return MsgBarcodeCharacters
	}
	return ""
}

// SanitizeBarcode strips non-printable characters and surrounding whitespace,
// as produced by scanners and spreadsheet copies.
func SanitizeBarcode(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(cleaned)
}

// ContainerType requires a known container type and flags retired ones.
func ContainerType(id string, types domain.ContainerTypeLookup) string {
	if id == "" {
		return MsgRequired
	}
	if types == nil {
		return ""
	}
	ct, ok := types.ContainerType(id)
	if !ok {
		return fmt.Sprintf("Unknown container type %s", id)
	}
	if ct.Retired {
		return fmt.Sprintf("container type %s is retired", id)
	}
	return ""
}

// VolumeAndMass validates the coupled quantity pair against the capacity of
// the container type. Both zero yields the either/or message on both fields;
// otherwise each quantity is range-checked on its own. When the container
// type cannot be resolved only the lower bound is enforced.
func VolumeAndMass(volume, mass decimal.Decimal, containerTypeID string, types domain.ContainerTypeLookup, units domain.Units) (volumeMsg, massMsg string) {
	if volume.IsZero() && mass.IsZero() {
		return MsgVolumeOrMass, MsgVolumeOrMass
	}
	if units.Volume == "" && units.Mass == "" {
		units = domain.DefaultUnits
	}
	var (
		ct    domain.ContainerType
		known bool
	)
	if types != nil && containerTypeID != "" {
		ct, known = types.ContainerType(containerTypeID)
	}
	if known {
		return withinCapacity(volume, ct.MaxVolume, units.Volume), withinCapacity(mass, ct.MaxMass, units.Mass)
	}
	return nonNegative(volume, units.Volume), nonNegative(mass, units.Mass)
}

func withinCapacity(v, capacity decimal.Decimal, unit string) string {
	if v.IsNegative() || v.GreaterThan(capacity) {
		return fmt.Sprintf("Must be between 0%s and %s%s", unit, capacity.String(), unit)
	}
	return ""
}

func nonNegative(v decimal.Decimal, unit string) string {
	if v.IsNegative() {
		return fmt.Sprintf("Must be at least 0%s", unit)
	}
	return ""
}
