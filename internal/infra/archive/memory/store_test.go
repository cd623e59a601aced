package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"labcheckin/internal/archive/core"
)

func TestPutGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"orders": "2"}
	if _, err := s.Put(ctx, "checkins/b.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["orders"] = "mutated"
	if _, err := s.Put(ctx, "checkins/a.json", strings.NewReader("[]"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "checkins/a.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	info, rc, err := s.Get(ctx, "checkins/b.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || info.Metadata["orders"] != "2" || info.ContentType != "application/json" {
		t.Fatalf("unexpected object %+v %q", info, body)
	}

	list, _ := s.List(ctx, "checkins/")
	if len(list) != 2 || list[0].Key != "checkins/a.json" {
		t.Fatalf("unexpected listing %+v", list)
	}
	if list, _ := s.List(ctx, "other/"); len(list) != 0 {
		t.Fatalf("prefix filter failed: %+v", list)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
