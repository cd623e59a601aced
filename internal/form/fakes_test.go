package form

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"labcheckin/pkg/domain"

	"github.com/shopspring/decimal"
)

var tubes = domain.ContainerTypes{
	"vendor-tube": {ID: "vendor-tube", MaxVolume: decimal.NewFromInt(3500), MaxMass: decimal.NewFromInt(7000)},
	"a1-vial":     {ID: "a1-vial", MaxVolume: decimal.NewFromInt(50000), MaxMass: decimal.NewFromInt(100000)},
}

type fakeMaterials struct {
	records map[string]domain.MaterialRecord
	err     error
}

func (f fakeMaterials) Materials(_ context.Context, ids []string) (map[string]domain.MaterialRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]domain.MaterialRecord{}
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func component(id string, volume int64) domain.ComponentRecord {
	return domain.ComponentRecord{
		ID:                 id,
		Resource:           domain.Resource{ID: "res-" + id, Name: id},
		ContainerTypeID:    "vendor-tube",
		VolumePerContainer: decimal.NewFromInt(volume),
	}
}

var catalog = fakeMaterials{records: map[string]domain.MaterialRecord{
	"buffer": {OrderableMaterialID: "buffer", Kind: domain.KindIndividual, Components: []domain.ComponentRecord{component("buffer", 100)}},
	"kit":    {OrderableMaterialID: "kit", Kind: domain.KindGroup, Components: []domain.ComponentRecord{component("a", 100), component("b", 200)}},
}}

type fakeLocations struct {
	locs map[string]domain.Location
}

func (f fakeLocations) Location(_ context.Context, id string) (domain.Location, error) {
	loc, ok := f.locs[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound{Entity: "location", ID: id}
	}
	return loc, nil
}

func (f fakeLocations) NextAvailableCells(_ context.Context, boxID string, n int, prohibited []string) ([]domain.Location, error) {
	return nil, nil
}

// gatedUniqueness blocks each round trip until release is closed when set.
// With labGates set, a round trip blocks on the gate of its first
// candidate's lab and announces that lab on startedLab. taken keys are a
// barcode, or lab/barcode for a single lab.
type gatedUniqueness struct {
	mu         sync.Mutex
	calls      [][]domain.BarcodeCandidate
	taken      map[string]bool
	started    chan struct{}
	release    chan struct{}
	startedLab chan string
	labGates   map[string]chan struct{}
	err        error
}

func (g *gatedUniqueness) ValidateBarcodes(_ context.Context, cands []domain.BarcodeCandidate) ([]domain.BarcodeVerdict, error) {
	g.mu.Lock()
	g.calls = append(g.calls, cands)
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.labGates != nil && len(cands) > 0 {
		lab := cands[0].LabID
		g.startedLab <- lab
		<-g.labGates[lab]
	}
	if g.err != nil {
		return nil, g.err
	}
	out := make([]domain.BarcodeVerdict, len(cands))
	for i, c := range cands {
		out[i] = domain.BarcodeVerdict{RowRef: c.RowRef, Value: c.Value, LabID: c.LabID, Valid: !g.taken[c.Value] && !g.taken[c.LabID+"/"+c.Value]}
	}
	return out, nil
}

func (g *gatedUniqueness) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// captureSink records submissions. during runs while the request is in
// flight.
type captureSink struct {
	requests [][]domain.CheckInRequest
	reject   []domain.OrderError
	err      error
	during   func()
}

func (c *captureSink) SubmitCheckIns(_ context.Context, reqs []domain.CheckInRequest) ([]domain.OrderError, error) {
	c.requests = append(c.requests, reqs)
	if c.during != nil {
		c.during()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.reject, nil
}

type captureNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *captureNotifier) last() domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notes) == 0 {
		return domain.Notification{}
	}
	return c.notes[len(c.notes)-1]
}

type captureArchiver struct {
	archived [][]domain.CheckInRequest
}

func (c *captureArchiver) Archive(_ context.Context, reqs []domain.CheckInRequest) (string, error) {
	c.archived = append(c.archived, reqs)
	return "archive-1", nil
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *captureLogger) has(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.calls, entry)
}

func (c *captureLogger) hasPrefix(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

var errBoom = errors.New("boom")
