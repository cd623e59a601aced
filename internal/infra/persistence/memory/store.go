// Package memory provides an in-memory check-in store used for tests and
// ephemeral environments. The sqlite and postgres stores embed it and persist
// its snapshot after every accepted order.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"labcheckin/internal/uniqueness"
	"labcheckin/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions.
var (
	_ domain.CheckInSink     = (*Store)(nil)
	_ uniqueness.BarcodeIndex = (*Store)(nil)
)

// Snapshot is the serializable state of a store.
type Snapshot struct {
	Containers map[string]domain.Container `json:"containers"`
}

type memoryState struct {
	containers map[string]domain.Container
}

func newMemoryState() memoryState {
	return memoryState{containers: make(map[string]domain.Container)}
}

func (s memoryState) clone() memoryState {
	cp := newMemoryState()
	for id, c := range s.containers {
		cp.containers[id] = c
	}
	return cp
}

// Store keeps checked-in containers in memory.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs a store evaluating engine before each order commits.
// A nil engine accepts everything.
func NewStore(engine *domain.RulesEngine) *Store {
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the check-in timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// SubmitCheckIns evaluates and commits each order on its own. Orders with
// blocking violations are returned as OrderErrors and leave no trace;
// accepted orders are visible to the rules of the orders that follow.
func (s *Store) SubmitCheckIns(ctx context.Context, requests []domain.CheckInRequest) ([]domain.OrderError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rejected []domain.OrderError
	for _, req := range requests {
		next := s.state.clone()
		if s.engine != nil {
			res, err := s.engine.Evaluate(ctx, stateView{state: &s.state}, req)
			if err != nil {
				return nil, fmt.Errorf("evaluate order %s: %w", req.OrderID, err)
			}
			if res.HasBlocking() {
				rejected = append(rejected, res.OrderErrors()...)
				continue
			}
		}
		now := s.nowFn()
		for _, c := range req.Containers {
			id := uuid.NewString()
			next.containers[id] = domain.Container{
				ID:                 id,
				OrderID:            req.OrderID,
				RowID:              c.RowID,
				ResourceID:         c.ResourceID,
				Label:              c.Label,
				LotNo:              c.LotNo,
				Barcode:            c.Barcode,
				VolumePerContainer: c.VolumePerContainer,
				MassPerContainer:   c.MassPerContainer,
				ContainerTypeID:    c.ContainerTypeID,
				LocationID:         c.LocationID,
				LabID:              c.LabID,
				CheckedInAt:        now,
			}
		}
		s.state = next
	}
	return rejected, nil
}

// ExistingBarcodes reports which of values are already checked in to lab.
func (s *Store) ExistingBarcodes(_ context.Context, labID string, values []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	out := make(map[string]bool)
	for _, c := range s.state.containers {
		if c.LabID == labID && want[c.Barcode] {
			out[c.Barcode] = true
		}
	}
	return out, nil
}

// LocationOccupied reports whether a checked-in container sits at locationID.
func (s *Store) LocationOccupied(locationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := stateView{state: &s.state}.FindContainerByLocation(locationID)
	return ok
}

// Containers lists every container ordered by order, then row.
func (s *Store) Containers() []domain.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Container, 0, len(s.state.containers))
	for _, c := range s.state.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].RowID < out[j].RowID
	})
	return out
}

// ExportState returns a deep copy of the state for persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Containers: s.state.clone().containers}
}

// ImportState replaces the state with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newMemoryState()
	for id, c := range snapshot.Containers {
		st.containers[id] = c
	}
	s.state = st
}

type stateView struct {
	state *memoryState
}

func (v stateView) FindContainerByBarcode(labID, barcode string) (domain.Container, bool) {
	for _, c := range v.state.containers {
		if c.LabID == labID && c.Barcode == barcode {
			return c, true
		}
	}
	return domain.Container{}, false
}

func (v stateView) FindContainerByLocation(locationID string) (domain.Container, bool) {
	for _, c := range v.state.containers {
		if c.LocationID == locationID {
			return c, true
		}
	}
	return domain.Container{}, false
}
