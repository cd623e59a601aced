// Package catalog serves materials, container types and storage locations
// from an in-memory snapshot, typically loaded from a YAML file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"labcheckin/pkg/domain"
)

var (
	_ domain.MaterialSource      = (*Catalog)(nil)
	_ domain.LocationSource      = (*Catalog)(nil)
	_ domain.ContainerTypeLookup = (*Catalog)(nil)
)

// Occupancy reports locations that already hold a checked-in container.
type Occupancy interface {
	LocationOccupied(locationID string) bool
}

// File is the on-disk catalog layout.
type File struct {
	Materials      []domain.MaterialRecord `yaml:"materials"`
	ContainerTypes []domain.ContainerType  `yaml:"container_types"`
	Locations      []domain.Location       `yaml:"locations"`
}

// Catalog implements the material, location and container type sources.
type Catalog struct {
	mu        sync.RWMutex
	materials map[string]domain.MaterialRecord
	types     domain.ContainerTypes
	locations map[string]domain.Location
	cells     map[string][]domain.Location
	occupancy Occupancy
}

// New indexes f. Duplicate ids and box cells without a parent are errors.
func New(f File) (*Catalog, error) {
	c := &Catalog{
		materials: make(map[string]domain.MaterialRecord, len(f.Materials)),
		types:     make(domain.ContainerTypes, len(f.ContainerTypes)),
		locations: make(map[string]domain.Location, len(f.Locations)),
		cells:     make(map[string][]domain.Location),
	}
	for _, m := range f.Materials {
		if _, dup := c.materials[m.OrderableMaterialID]; dup {
			return nil, fmt.Errorf("duplicate material %q", m.OrderableMaterialID)
		}
		if m.Kind == "" {
			m.Kind = domain.KindIndividual
		}
		for i := range m.Components {
			if m.Components[i].Units == (domain.Units{}) {
				m.Components[i].Units = domain.DefaultUnits
			}
		}
		c.materials[m.OrderableMaterialID] = m
	}
	for _, ct := range f.ContainerTypes {
		if _, dup := c.types[ct.ID]; dup {
			return nil, fmt.Errorf("duplicate container type %q", ct.ID)
		}
		c.types[ct.ID] = ct
	}
	for _, loc := range f.Locations {
		if _, dup := c.locations[loc.ID]; dup {
			return nil, fmt.Errorf("duplicate location %q", loc.ID)
		}
		if loc.BoxCell && loc.ParentID == "" {
			return nil, fmt.Errorf("box cell %q has no parent box", loc.ID)
		}
		c.locations[loc.ID] = loc
	}
	for _, loc := range c.locations {
		if !loc.BoxCell {
			continue
		}
		if parent, ok := c.locations[loc.ParentID]; ok && loc.LabID == "" {
			loc.LabID = parent.LabID
			c.locations[loc.ID] = loc
		}
		c.cells[loc.ParentID] = append(c.cells[loc.ParentID], loc)
	}
	for box := range c.cells {
		cells := c.cells[box]
		sort.Slice(cells, func(i, j int) bool {
			if cells[i].Index != cells[j].Index {
				return cells[i].Index < cells[j].Index
			}
			return cells[i].ID < cells[j].ID
		})
	}
	return c, nil
}

// Load reads and indexes a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(f)
}

// SetOccupancy makes NextAvailableCells skip cells occupied in o.
func (c *Catalog) SetOccupancy(o Occupancy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.occupancy = o
}

// Materials returns the records of ids. Unknown ids are omitted.
func (c *Catalog) Materials(_ context.Context, ids []string) (map[string]domain.MaterialRecord, error) {
	out := make(map[string]domain.MaterialRecord, len(ids))
	for _, id := range ids {
		if m, ok := c.materials[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// ContainerType implements domain.ContainerTypeLookup.
func (c *Catalog) ContainerType(id string) (domain.ContainerType, bool) {
	return c.types.ContainerType(id)
}

// ContainerTypes returns the container type table.
func (c *Catalog) ContainerTypes() domain.ContainerTypes { return c.types }

// Location implements domain.LocationSource.
func (c *Catalog) Location(_ context.Context, id string) (domain.Location, error) {
	loc, ok := c.locations[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound{Entity: "location", ID: id}
	}
	return loc, nil
}

// NextAvailableCells implements domain.LocationSource.
func (c *Catalog) NextAvailableCells(_ context.Context, boxID string, n int, prohibited []string) ([]domain.Location, error) {
	if _, ok := c.locations[boxID]; !ok {
		return nil, domain.ErrNotFound{Entity: "location", ID: boxID}
	}
	skip := make(map[string]bool, len(prohibited))
	for _, id := range prohibited {
		skip[id] = true
	}
	c.mu.RLock()
	occupancy := c.occupancy
	c.mu.RUnlock()

	var out []domain.Location
	for _, cell := range c.cells[boxID] {
		if len(out) >= n {
			break
		}
		if skip[cell.ID] || (occupancy != nil && occupancy.LocationOccupied(cell.ID)) {
			continue
		}
		out = append(out, cell)
	}
	return out, nil
}
