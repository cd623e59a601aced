package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const catalogYAML = `
materials:
  - id: buffer
    kind: individual
    components:
      - id: c1
        resource: {id: r1, name: Buffer}
        container_type_id: tube
        volume_per_container: "10"
container_types:
  - id: tube
    name: Tube
    max_volume: "50"
    max_mass: "50"
locations:
  - id: box1
    lab_id: lab1
  - id: box1-a
    parent_id: box1
    box_cell: true
    index: 0
`

type harness struct {
	dir     string
	catalog string
}

func newHarness(t *testing.T, metrics string) harness {
	t.Helper()
	prev := newLogger
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() { newLogger = prev })

	dir := t.TempDir()
	h := harness{dir: dir, catalog: writeFixture(t, dir, "catalog.yaml", catalogYAML)}
	t.Setenv("LABCHECKIN_STORAGE_DRIVER", "sqlite")
	t.Setenv("LABCHECKIN_SQLITE_PATH", filepath.Join(dir, "checkin.db"))
	t.Setenv("LABCHECKIN_ARCHIVE_DRIVER", "fs")
	t.Setenv("LABCHECKIN_ARCHIVE_DIR", filepath.Join(dir, "archive"))
	t.Setenv("LABCHECKIN_METRICS", metrics)
	return h
}

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (h harness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{args[0], "--config", filepath.Join(h.dir, "none.yaml"), "--catalog", h.catalog}, args[1:]...)
	code := cli(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func batch(barcodes ...string) string {
	var b strings.Builder
	b.WriteString("orders:\n")
	for i, code := range barcodes {
		b.WriteString("  - id: o" + string(rune('1'+i)) + "\n")
		b.WriteString("    material: buffer\n    lab_id: lab1\n")
		b.WriteString("    components:\n      0:\n        barcode: \"" + code + "\"\n")
	}
	return b.String()
}

func TestValidateReportsDuplicates(t *testing.T) {
	h := newHarness(t, "prometheus")
	valid := writeFixture(t, h.dir, "valid.yaml", batch("A1", "A2"))
	code, out, errOut := h.run("validate", valid)
	if code != 0 || !strings.Contains(out, "batch is valid") {
		t.Fatalf("expected valid batch, code=%d out=%q err=%q", code, out, errOut)
	}

	dup := writeFixture(t, h.dir, "dup.yaml", batch("SAME", "SAME"))
	code, out, _ = h.run("validate", dup)
	if code != 1 {
		t.Fatalf("expected failure for duplicated barcodes, got %d", code)
	}
	if !strings.Contains(out, "o1") || !strings.Contains(out, "o2") || !strings.Contains(out, "Duplicate") {
		t.Fatalf("report should list both rows: %q", out)
	}
}

func TestValidateFormatError(t *testing.T) {
	h := newHarness(t, "none")
	bad := writeFixture(t, h.dir, "bad.yaml", batch("has space"))
	code, out, _ := h.run("validate", bad)
	if code != 1 || !strings.Contains(out, "barcode") {
		t.Fatalf("expected barcode format error, code=%d out=%q", code, out)
	}
}

func TestSubmitArchivesAndBlocksResubmission(t *testing.T) {
	h := newHarness(t, "expvar")
	path := writeFixture(t, h.dir, "batch.yaml", batch("B1", "B2"))

	code, out, errOut := h.run("submit", path)
	if code != 0 {
		t.Fatalf("submit failed: code=%d out=%q err=%q", code, out, errOut)
	}
	if !strings.Contains(out, "accepted: 2, rejected: 0") || !strings.Contains(out, "archived as checkins/") {
		t.Fatalf("unexpected submit output %q", out)
	}
	if !strings.Contains(errOut, "Checked in 2 orders") {
		t.Fatalf("expected success notification, got %q", errOut)
	}

	code, out, _ = h.run("archived")
	if code != 0 || strings.Count(out, "checkins/") != 1 {
		t.Fatalf("expected one archived submission, code=%d out=%q", code, out)
	}

	code, out, _ = h.run("submit", path)
	if code != 1 || !strings.Contains(out, "Duplicate") {
		t.Fatalf("resubmission should be blocked by stored barcodes, code=%d out=%q", code, out)
	}
}

func TestTraceFile(t *testing.T) {
	h := newHarness(t, "none")
	path := writeFixture(t, h.dir, "batch.yaml", batch("T1"))
	trace := filepath.Join(h.dir, "trace.jsonl")
	if code, out, errOut := h.run("validate", path, "--trace", trace); code != 0 {
		t.Fatalf("validate failed: %q %q", out, errOut)
	}
	raw, err := os.ReadFile(trace)
	if err != nil || !strings.Contains(string(raw), "load") {
		t.Fatalf("expected load span in trace, got %q %v", raw, err)
	}
}

func TestCLIErrors(t *testing.T) {
	h := newHarness(t, "none")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing batch", []string{"validate", filepath.Join(h.dir, "absent.yaml")}, "read batch"},
		{"empty batch", []string{"validate", writeFixture(t, h.dir, "empty.yaml", "orders: []\n")}, "no orders"},
		{"unknown material", []string{"validate", writeFixture(t, h.dir, "unknown.yaml", "orders:\n  - id: x\n    material: nope\n")}, "material nope not found"},
		{"bad catalog", []string{"validate", "--catalog", filepath.Join(h.dir, "nope.yaml"), "x.yaml"}, "read catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := h.run(tt.args...)
			if code != 1 || !strings.Contains(errOut, tt.want) {
				t.Fatalf("expected %q, code=%d stderr=%q", tt.want, code, errOut)
			}
		})
	}

	t.Setenv("LABCHECKIN_ARCHIVE_DRIVER", "none")
	if code, _, errOut := h.run("archived"); code != 1 || !strings.Contains(errOut, "disabled") {
		t.Fatalf("expected disabled archive error, got %d %q", code, errOut)
	}
}
