package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/sectboard/internal/domain"
)

// SnapshotVersion tags the JSON export format.
const SnapshotVersion = "sectboard.snapshot.v1"

// Snapshot is a portable copy of the whole table in canonical order.
type Snapshot struct {
	Version      string          `json:"version"`
	ExportedAt   time.Time       `json:"exported_at"`
	SectionTypes []string        `json:"section_types,omitempty"`
	Records      []domain.Record `json:"records"`
}

// ExportSnapshot captures the table.
func (t *Table) ExportSnapshot() Snapshot {
	types := make([]string, 0, len(t.Schema().SectionTypes))
	for _, st := range t.Schema().SectionTypes {
		types = append(types, string(st))
	}
	return Snapshot{
		Version:      SnapshotVersion,
		ExportedAt:   t.clock().UTC(),
		SectionTypes: types,
		Records:      t.Records(),
	}
}

// Validate checks the version, id uniqueness, and every record against schema.
func (s Snapshot) Validate(schema domain.Schema) error {
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %q", s.Version)
	}
	seen := map[int]struct{}{}
	for i, rec := range s.Records {
		if err := schema.Validate(rec); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		if _, ok := seen[rec.ID]; ok {
			return fmt.Errorf("records[%d]: %w", i, &domain.ValidationError{Field: domain.FieldID, Value: fmt.Sprint(rec.ID), Reason: "is duplicated"})
		}
		seen[rec.ID] = struct{}{}
	}
	return nil
}

// ImportSnapshot upserts every snapshot record and then moves the imported
// records to the front of the canonical order in snapshot order. Records
// absent from the snapshot are kept after them. The import commits as one
// mutation: either every record lands or none does.
func (t *Table) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(t.Schema()); err != nil {
		return err
	}
	return t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		if len(snap.Records) == 0 {
			return domain.Mutation{}, errNoop
		}
		ids := make([]int, 0, len(snap.Records))
		stored := make([]domain.Record, 0, len(snap.Records))
		for _, rec := range snap.Records {
			var (
				out domain.Record
				err error
			)
			if s.Has(rec.ID) {
				out, err = s.UpdateFields(rec.ID, domain.NewEditBuffer(rec).Edits()...)
			} else {
				out, err = s.Insert(rec)
			}
			if err != nil {
				return domain.Mutation{}, fmt.Errorf("import record %d: %w", rec.ID, err)
			}
			ids = append(ids, out.ID)
			stored = append(stored, out)
		}

		order := slices.Clone(ids)
		for _, id := range s.IDs() {
			if !slices.Contains(ids, id) {
				order = append(order, id)
			}
		}
		if !slices.Equal(order, s.IDs()) {
			if err := s.Reorder(order); err != nil {
				return domain.Mutation{}, err
			}
		}
		return domain.Mutation{Op: domain.MutationImport, RecordIDs: ids, Records: stored}, nil
	})
}
