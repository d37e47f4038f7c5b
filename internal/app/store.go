package app

import (
	"fmt"
	"iter"
	"slices"

	"github.com/hylla/sectboard/internal/domain"
)

// opLoad marks a store event produced by Load or a rollback.
const opLoad domain.MutationOp = "load"

// StoreEvent describes one applied store mutation to subscribers.
type StoreEvent struct {
	Op      domain.MutationOp
	IDs     []int
	Fields  []domain.Field
	Removed []int
}

type subscriber struct {
	id int
	fn func(StoreEvent)
}

// RowStore owns the canonical ordered collection of records.
// It is not safe for concurrent use; Table serializes access.
type RowStore struct {
	schema  domain.Schema
	order   []int
	byID    map[int]domain.Record
	subs    []subscriber
	nextSub int
	// held queues events while a mutation awaits persistence.
	held    []StoreEvent
	holding bool
}

// NewRowStore constructs an empty store validating against schema.
func NewRowStore(schema domain.Schema) *RowStore {
	return &RowStore{
		schema: schema,
		byID:   map[int]domain.Record{},
	}
}

// Schema returns the record contract of the store.
func (s *RowStore) Schema() domain.Schema {
	return s.schema
}

// Load replaces the whole collection. Either every record is accepted or the
// store is left unchanged.
func (s *RowStore) Load(records []domain.Record) error {
	order := make([]int, 0, len(records))
	byID := make(map[int]domain.Record, len(records))
	for _, raw := range records {
		rec, err := s.schema.Normalize(raw)
		if err != nil {
			return fmt.Errorf("load record %d: %w", raw.ID, err)
		}
		if _, ok := byID[rec.ID]; ok {
			return fmt.Errorf("load record %d: %w", rec.ID, &domain.ValidationError{Field: domain.FieldID, Value: fmt.Sprint(rec.ID), Reason: "is duplicated"})
		}
		byID[rec.ID] = rec
		order = append(order, rec.ID)
	}
	removed := s.missingFrom(byID)
	s.order = order
	s.byID = byID
	s.notify(StoreEvent{Op: opLoad, IDs: slices.Clone(order), Removed: removed})
	return nil
}

// Insert appends a record to the end of the canonical order.
func (s *RowStore) Insert(r domain.Record) (domain.Record, error) {
	rec, err := s.schema.Normalize(r)
	if err != nil {
		return domain.Record{}, err
	}
	if _, ok := s.byID[rec.ID]; ok {
		return domain.Record{}, &domain.ValidationError{Field: domain.FieldID, Value: fmt.Sprint(rec.ID), Reason: "already exists"}
	}
	s.byID[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.notify(StoreEvent{Op: domain.MutationInsert, IDs: []int{rec.ID}})
	return rec.Clone(), nil
}

// Reorder replaces the canonical order with a permutation of the current ids.
func (s *RowStore) Reorder(order []int) error {
	if err := s.checkPermutation(order); err != nil {
		return err
	}
	s.order = slices.Clone(order)
	s.notify(StoreEvent{Op: domain.MutationReorder, IDs: slices.Clone(order)})
	return nil
}

func (s *RowStore) checkPermutation(order []int) error {
	if len(order) != len(s.order) {
		return fmt.Errorf("%w: reorder has %d ids, store has %d", domain.ErrInvariant, len(order), len(s.order))
	}
	seen := make(map[int]struct{}, len(order))
	for _, id := range order {
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("%w: reorder references unknown id %d", domain.ErrInvariant, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: reorder repeats id %d", domain.ErrInvariant, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// UpdateField applies one typed edit to a record.
func (s *RowStore) UpdateField(id int, edit domain.Edit) (domain.Record, error) {
	return s.UpdateFields(id, edit)
}

// UpdateFields applies several edits to one record atomically.
func (s *RowStore) UpdateFields(id int, edits ...domain.Edit) (domain.Record, error) {
	current, ok := s.byID[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
	}
	next, err := domain.ApplyEdits(s.schema, current, edits...)
	if err != nil {
		return domain.Record{}, err
	}
	s.byID[id] = next
	s.notify(StoreEvent{Op: domain.MutationUpdate, IDs: []int{id}, Fields: domain.FieldsOf(edits)})
	return next.Clone(), nil
}

// UpdateMany applies the same edits to every listed record. Nothing changes
// unless every record accepts the edits.
func (s *RowStore) UpdateMany(ids []int, edits ...domain.Edit) ([]domain.Record, error) {
	staged := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		current, ok := s.byID[id]
		if !ok {
			return nil, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
		}
		next, err := domain.ApplyEdits(s.schema, current, edits...)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", id, err)
		}
		staged = append(staged, next)
	}
	out := make([]domain.Record, 0, len(staged))
	for _, rec := range staged {
		s.byID[rec.ID] = rec
		out = append(out, rec.Clone())
	}
	s.notify(StoreEvent{Op: domain.MutationUpdate, IDs: slices.Clone(ids), Fields: domain.FieldsOf(edits)})
	return out, nil
}

// Remove deletes the listed records and returns the ids actually removed.
// Unknown ids are ignored.
func (s *RowStore) Remove(ids ...int) []int {
	drop := map[int]struct{}{}
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return nil
	}
	removed := make([]int, 0, len(drop))
	kept := s.order[:0:0]
	for _, id := range s.order {
		if _, ok := drop[id]; ok {
			removed = append(removed, id)
			delete(s.byID, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	s.notify(StoreEvent{Op: domain.MutationRemove, IDs: slices.Clone(removed), Removed: slices.Clone(removed)})
	return removed
}

// All yields a snapshot of the records in canonical order.
func (s *RowStore) All() iter.Seq[domain.Record] {
	records := s.Records()
	return func(yield func(domain.Record) bool) {
		for _, rec := range records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Records returns copies of all records in canonical order.
func (s *RowStore) Records() []domain.Record {
	out := make([]domain.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Get returns a copy of one record.
func (s *RowStore) Get(id int) (domain.Record, error) {
	rec, ok := s.byID[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
	}
	return rec.Clone(), nil
}

// Has reports whether id is live.
func (s *RowStore) Has(id int) bool {
	_, ok := s.byID[id]
	return ok
}

// IDs returns the canonical order.
func (s *RowStore) IDs() []int {
	return slices.Clone(s.order)
}

// Len returns the number of records.
func (s *RowStore) Len() int {
	return len(s.order)
}

// NextID returns one more than the largest id in the store.
func (s *RowStore) NextID() int {
	next := 1
	for id := range s.byID {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// Subscribe registers fn for every applied mutation and returns a function
// that removes the registration. fn runs synchronously after the mutation.
func (s *RowStore) Subscribe(fn func(StoreEvent)) func() {
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *RowStore) notify(ev StoreEvent) {
	if s.holding {
		s.held = append(s.held, ev)
		return
	}
	for _, sub := range slices.Clone(s.subs) {
		sub.fn(ev)
	}
}

// hold queues notifications until release.
func (s *RowStore) hold() {
	s.holding = true
	s.held = nil
}

// release ends a hold. Queued events reach subscribers only when deliver is
// set; a rolled back mutation was never observable.
func (s *RowStore) release(deliver bool) {
	held := s.held
	s.holding, s.held = false, nil
	if !deliver {
		return
	}
	for _, ev := range held {
		s.notify(ev)
	}
}

type storeSnapshot struct {
	order []int
	byID  map[int]domain.Record
}

func (s *RowStore) snapshot() storeSnapshot {
	byID := make(map[int]domain.Record, len(s.byID))
	for id, rec := range s.byID {
		byID[id] = rec.Clone()
	}
	return storeSnapshot{order: slices.Clone(s.order), byID: byID}
}

// restore reinstates a snapshot taken before a mutation that failed to persist.
func (s *RowStore) restore(snap storeSnapshot) {
	removed := s.missingFrom(snap.byID)
	s.order = snap.order
	s.byID = snap.byID
	s.notify(StoreEvent{Op: opLoad, IDs: slices.Clone(snap.order), Removed: removed})
}

func (s *RowStore) missingFrom(next map[int]domain.Record) []int {
	var out []int
	for _, id := range s.order {
		if _, ok := next[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
