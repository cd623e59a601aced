package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"labcheckin/internal/form"
	"labcheckin/pkg/domain"
)

// batchFile is the YAML layout of a check-in batch. Component values are
// keyed by component index, then by field name.
type batchFile struct {
	ValidateUniqueness *bool        `yaml:"validate_uniqueness"`
	Orders             []batchOrder `yaml:"orders"`
}

type batchOrder struct {
	ID         string                    `yaml:"id"`
	Material   string                    `yaml:"material"`
	LabID      string                    `yaml:"lab_id"`
	LocationID string                    `yaml:"location_id"`
	Components map[int]map[string]string `yaml:"components"`
}

func readBatch(path string) (batchFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return batchFile{}, fmt.Errorf("read batch: %w", err)
	}
	var b batchFile
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return batchFile{}, fmt.Errorf("parse batch %s: %w", path, err)
	}
	if len(b.Orders) == 0 {
		return batchFile{}, fmt.Errorf("batch %s has no orders", path)
	}
	return b, nil
}

func (b batchFile) orderInputs(ctx context.Context, locations domain.LocationSource) ([]form.OrderInput, error) {
	out := make([]form.OrderInput, 0, len(b.Orders))
	for i, o := range b.Orders {
		if o.ID == "" || o.Material == "" {
			return nil, fmt.Errorf("order %d: id and material are required", i)
		}
		in := form.OrderInput{
			ID:                  o.ID,
			OrderableMaterialID: o.Material,
			LabID:               o.LabID,
			LocationID:          o.LocationID,
		}
		if len(o.Components) > 0 {
			in.Initial = make(map[int][]domain.FieldValue, len(o.Components))
		}
		for idx, fields := range o.Components {
			values, err := componentValues(ctx, locations, fields)
			if err != nil {
				return nil, fmt.Errorf("order %s component %d: %w", o.ID, idx, err)
			}
			in.Initial[idx] = values
		}
		out = append(out, in)
	}
	return out, nil
}

// componentValues converts raw field text in a stable field order. Locations
// take their lab from the catalog when it knows them.
func componentValues(ctx context.Context, locations domain.LocationSource, fields map[string]string) ([]domain.FieldValue, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]domain.FieldValue, 0, len(names))
	for _, name := range names {
		raw := fields[name]
		field := domain.Field(name)
		if field == domain.FieldLocation {
			assignment := domain.LocationAssignment{ID: raw}
			loc, err := locations.Location(ctx, raw)
			var nf domain.ErrNotFound
			switch {
			case err == nil:
				assignment.LabID = loc.LabID
			case !errors.As(err, &nf):
				return nil, err
			}
			values = append(values, assignment)
			continue
		}
		v, err := domain.ParseValue(field, raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
