package uniqueness

import (
	"context"
	"fmt"
	"sync"

	"labcheckin/pkg/domain"

	"golang.org/x/sync/errgroup"
)

// BarcodeIndex reports which of values are already checked in for a lab.
type BarcodeIndex interface {
	ExistingBarcodes(ctx context.Context, labID string, values []string) (map[string]bool, error)
}

// IndexSource is a domain.UniquenessSource over a BarcodeIndex. A barcode is
// invalid when it already exists in its lab or appears more than once in the
// same request for that lab.
type IndexSource struct {
	index BarcodeIndex
	limit int
}

// NewIndexSource constructs a source. Per-lab lookups run concurrently, at
// most limit at a time (0 means unbounded).
func NewIndexSource(index BarcodeIndex, limit int) *IndexSource {
	return &IndexSource{index: index, limit: limit}
}

// ValidateBarcodes implements domain.UniquenessSource.
func (s *IndexSource) ValidateBarcodes(ctx context.Context, candidates []domain.BarcodeCandidate) ([]domain.BarcodeVerdict, error) {
	type labKey struct{ lab, value string }
	seen := make(map[labKey]int, len(candidates))
	byLab := make(map[string][]string)
	for _, c := range candidates {
		k := labKey{c.LabID, c.Value}
		if seen[k] == 0 {
			byLab[c.LabID] = append(byLab[c.LabID], c.Value)
		}
		seen[k]++
	}

	var mu sync.Mutex
	existing := make(map[labKey]bool)
	g, gctx := errgroup.WithContext(ctx)
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for lab, values := range byLab {
		g.Go(func() error {
			found, err := s.index.ExistingBarcodes(gctx, lab, values)
			if err != nil {
				return fmt.Errorf("lab %s: %w", lab, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for v, ok := range found {
				if ok {
					existing[labKey{lab, v}] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.BarcodeVerdict, len(candidates))
	for i, c := range candidates {
		k := labKey{c.LabID, c.Value}
		out[i] = domain.BarcodeVerdict{
			RowRef: c.RowRef,
			Value:  c.Value,
			LabID:  c.LabID,
			Valid:  seen[k] == 1 && !existing[k],
		}
	}
	return out, nil
}
