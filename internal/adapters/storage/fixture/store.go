// Package fixture keeps the section table in a JSON or YAML file, or purely
// in memory when no file is configured.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/sectboard/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed sample.json
var sampleJSON []byte

// maxEvents bounds the in-memory ledger.
const maxEvents = 500

// document is the on-disk fixture layout.
type document struct {
	Records []domain.Record `json:"records" yaml:"records"`
}

// Format names a fixture encoding.
type Format string

// Format values.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file extension. Unknown extensions are JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Sample returns the built-in demo table.
func Sample() []domain.Record {
	records, err := Decode(sampleJSON, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded sample fixture: %v", err))
	}
	return records
}

// Decode parses fixture bytes. A bare record list is accepted as well as the
// {records: [...]} document.
func Decode(raw []byte, format Format) ([]domain.Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.Record{}, nil
	}
	var (
		doc  document
		list []domain.Record
		err  error
	)
	switch format {
	case FormatYAML:
		if err = yaml.Unmarshal(raw, &doc); err != nil {
			if listErr := yaml.Unmarshal(raw, &list); listErr == nil {
				return list, nil
			}
		}
	default:
		if raw[0] == '[' {
			err = json.Unmarshal(raw, &list)
			if err == nil {
				return list, nil
			}
		} else {
			err = json.Unmarshal(raw, &doc)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s fixture: %w", format, err)
	}
	if doc.Records == nil {
		doc.Records = []domain.Record{}
	}
	return doc.Records, nil
}

// Encode renders records in the {records: [...]} layout.
func Encode(records []domain.Record, format Format) ([]byte, error) {
	doc := document{Records: records}
	if doc.Records == nil {
		doc.Records = []domain.Record{}
	}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml fixture: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml fixture: %w", err)
		}
		return buf.Bytes(), nil
	default:
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json fixture: %w", err)
		}
		return append(raw, '\n'), nil
	}
}

// Options configures a Store.
type Options struct {
	// Path is the fixture file. Empty keeps everything in memory and starts
	// from the built-in sample.
	Path string
	// WriteBack persists every mutation to Path.
	WriteBack bool
	// Seed writes the built-in sample to Path when the file does not exist.
	Seed bool
}

// Store implements app.Persistence and app.ChangeLog over a fixture file.
type Store struct {
	mu        sync.Mutex
	path      string
	format    Format
	writeBack bool
	records   []domain.Record
	events    []domain.ChangeEvent
	seq       int64
	// lastSynced holds the bytes last read from or written to path.
	lastSynced []byte
}

// Open loads the fixture described by opts.
func Open(opts Options) (*Store, error) {
	s := &Store{
		path:      strings.TrimSpace(opts.Path),
		writeBack: opts.WriteBack,
	}
	if s.path == "" {
		s.records = Sample()
		return s, nil
	}
	s.format = FormatFor(s.path)
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) && opts.Seed {
		s.records = Sample()
		if err := s.writeLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.readLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path, empty when in memory.
func (s *Store) Path() string {
	return s.path
}

// LoadRecords re-reads the backing file and returns its records.
func (s *Store) LoadRecords(_ context.Context) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := s.readLocked(); err != nil {
			return nil, err
		}
	}
	return cloneRecords(s.records), nil
}

// Persist applies one committed mutation and records it in the ledger.
func (s *Store) Persist(_ context.Context, m domain.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := apply(s.records, m)
	if err != nil {
		return err
	}
	prev := s.records
	s.records = next
	if s.path != "" && s.writeBack {
		if err := s.writeLocked(); err != nil {
			s.records = prev
			return err
		}
	}

	s.seq++
	at := m.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	s.events = append(s.events, domain.ChangeEvent{
		Seq:        s.seq,
		MutationID: m.ID,
		Op:         m.Op,
		RecordIDs:  slices.Clone(m.RecordIDs),
		Fields:     slices.Clone(m.Fields),
		ActorID:    m.ActorID,
		ActorType:  m.ActorType,
		OccurredAt: at.UTC(),
	})
	if len(s.events) > maxEvents {
		s.events = slices.Delete(s.events, 0, len(s.events)-maxEvents)
	}
	return nil
}

// ListChangeEvents returns the newest ledger entries first.
func (s *Store) ListChangeEvents(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]domain.ChangeEvent, 0, min(limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// changedOnDisk reports whether the file differs from what the store last
// read or wrote.
func (s *Store) changedOnDisk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}
	return !bytes.Equal(raw, s.lastSynced)
}

func (s *Store) readLocked() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", s.path, err)
	}
	records, err := Decode(raw, s.format)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	s.records = records
	s.lastSynced = raw
	return nil
}

// writeLocked replaces the fixture file through a temp file and rename.
func (s *Store) writeLocked() error {
	raw, err := Encode(s.records, s.format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create fixture dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write fixture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write fixture: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write fixture: %w", err)
	}
	s.lastSynced = raw
	return nil
}

// apply returns records with m applied. The input slice is not modified.
func apply(records []domain.Record, m domain.Mutation) ([]domain.Record, error) {
	byID := make(map[int]domain.Record, len(records)+len(m.Records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	switch m.Op {
	case domain.MutationInsert, domain.MutationImport:
		for _, rec := range m.Records {
			byID[rec.ID] = rec.Clone()
		}
	case domain.MutationUpdate:
		for _, rec := range m.Records {
			if _, ok := byID[rec.ID]; !ok {
				return nil, fmt.Errorf("update record %d: %w", rec.ID, domain.ErrNotFound)
			}
			byID[rec.ID] = rec.Clone()
		}
		order := make([]int, 0, len(records))
		for _, rec := range records {
			order = append(order, rec.ID)
		}
		m.Order = order
	case domain.MutationRemove:
		for _, id := range m.RecordIDs {
			delete(byID, id)
		}
	case domain.MutationReorder:
	default:
		return nil, fmt.Errorf("unsupported mutation op %q", m.Op)
	}

	out := make([]domain.Record, 0, len(m.Order))
	for _, id := range m.Order {
		rec, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("order references record %d: %w", id, domain.ErrInvariant)
		}
		out = append(out, rec)
	}
	if len(out) != len(byID) {
		return nil, fmt.Errorf("order covers %d of %d records: %w", len(out), len(byID), domain.ErrInvariant)
	}
	return out, nil
}

func cloneRecords(in []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(in))
	for _, rec := range in {
		out = append(out, rec.Clone())
	}
	return out
}
