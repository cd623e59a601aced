package validation

import (
	"testing"

	"labcheckin/pkg/domain"

	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var testTypes = domain.ContainerTypes{
	"vendor-tube": {ID: "vendor-tube", MaxVolume: dec(3500), MaxMass: dec(7000)},
	"a1-vial":     {ID: "a1-vial", MaxVolume: dec(50000), MaxMass: dec(100000)},
	"old-plate":   {ID: "old-plate", MaxVolume: dec(100), MaxMass: dec(100), Retired: true},
}

func TestLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"stock A", ""},
		{"stock,A", MsgCommaNotAllowed},
		{"stock/A", MsgSlashNotAllowed},
		{"a,b/c", MsgCommaNotAllowed},
	}
	for _, tc := range cases {
		if got := Label(tc.in); got != tc.want {
			t.Errorf("Label(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLotNumber(t *testing.T) {
	if got := LotNumber("LOT-1"); got != "" {
		t.Fatalf("expected valid lot number, got %q", got)
	}
	if got := LotNumber("LOT,1"); got != MsgCommaNotAllowed {
		t.Fatalf("expected comma error, got %q", got)
	}
}

func TestBarcodeFormat(t *testing.T) {
	valid := []string{"", "12345", "AB-12_x.9"}
	for _, v := range valid {
		if got := BarcodeFormat(v); got != "" {
			t.Errorf("BarcodeFormat(%q) = %q, want valid", v, got)
		}
	}
	invalid := []string{"12 345", "ab/c", "ü123", "a,b"}
	for _, v := range invalid {
		if got := BarcodeFormat(v); got != MsgBarcodeCharacters {
			t.Errorf("BarcodeFormat(%q) = %q, want charset error", v, got)
		}
	}
}

func TestSanitizeBarcode(t *testing.T) {
	if got := SanitizeBarcode("  12\x00345\t\r"); got != "12345" {
		t.Fatalf("unexpected sanitized barcode %q", got)
	}
}

func TestContainerType(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"", MsgRequired},
		{"vendor-tube", ""},
		{"nope", "Unknown container type nope"},
		{"old-plate", "container type old-plate is retired"},
	}
	for _, tc := range cases {
		if got := ContainerType(tc.id, testTypes); got != tc.want {
			t.Errorf("ContainerType(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestVolumeAndMass(t *testing.T) {
	cases := []struct {
		name     string
		volume   decimal.Decimal
		mass     decimal.Decimal
		ct       string
		wantVol  string
		wantMass string
	}{
		{"both zero", dec(0), dec(0), "vendor-tube", MsgVolumeOrMass, MsgVolumeOrMass},
		{"volume only", dec(100), dec(0), "vendor-tube", "", ""},
		{"volume over capacity", dec(4000), dec(0), "vendor-tube", "Must be between 0μl and 3500μl", ""},
		{"mass over capacity independent of volume", dec(4000), dec(8000), "vendor-tube", "Must be between 0μl and 3500μl", "Must be between 0mg and 7000mg"},
		{"negative mass", dec(10), dec(-1), "vendor-tube", "", "Must be between 0mg and 7000mg"},
		{"bigger container", dec(4000), dec(0), "a1-vial", "", ""},
		{"unknown container negative", dec(-5), dec(1), "nope", "Must be at least 0μl", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vol, mass := VolumeAndMass(tc.volume, tc.mass, tc.ct, testTypes, domain.DefaultUnits)
			if vol != tc.wantVol || mass != tc.wantMass {
				t.Fatalf("got (%q, %q), want (%q, %q)", vol, mass, tc.wantVol, tc.wantMass)
			}
		})
	}
}

func TestVolumeAndMassDefaultsUnits(t *testing.T) {
	vol, _ := VolumeAndMass(dec(4000), dec(0), "vendor-tube", testTypes, domain.Units{})
	if vol != "Must be between 0μl and 3500μl" {
		t.Fatalf("expected default units in message, got %q", vol)
	}
}
