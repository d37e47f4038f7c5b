package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/sectboard/internal/domain"
)

// Variant selects the feature set of the table component.
type Variant string

// Variant values.
const (
	VariantCompact Variant = "compact"
	VariantFull    Variant = "full"
)

// ParseVariant resolves a variant name, defaulting to full.
func ParseVariant(raw string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VariantFull:
		return VariantFull, nil
	case VariantCompact:
		return VariantCompact, nil
	default:
		return "", fmt.Errorf("invalid variant %q", raw)
	}
}

// Columns returns the columns this variant can show.
func (v Variant) Columns() []domain.Field {
	if v == VariantCompact {
		return []domain.Field{
			domain.FieldHeader,
			domain.FieldType,
			domain.FieldStatus,
			domain.FieldTarget,
			domain.FieldLimit,
			domain.FieldReviewer,
		}
	}
	return domain.AllFields()
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// TableConfig holds configuration for a table service.
type TableConfig struct {
	Schema  domain.Schema
	Variant Variant
}

// Table serializes every read and mutation of one RowStore and mirrors
// committed mutations to the persistence collaborator. A mutation the
// collaborator rejects is rolled back.
type Table struct {
	mu      sync.Mutex
	store   *RowStore
	persist Persistence
	idGen   IDGenerator
	clock   Clock
	variant Variant
	hooks   []func(domain.Mutation)
}

// NewTable constructs an empty table. persist may be nil for a purely
// in-memory table.
func NewTable(persist Persistence, idGen IDGenerator, clock Clock, cfg TableConfig) *Table {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if len(cfg.Schema.SectionTypes) == 0 {
		cfg.Schema = domain.DefaultSchema()
	}
	if cfg.Variant == "" {
		cfg.Variant = VariantFull
	}
	return &Table{
		store:   NewRowStore(cfg.Schema),
		persist: persist,
		idGen:   idGen,
		clock:   clock,
		variant: cfg.Variant,
	}
}

// Load replaces the table content with the collaborator's records.
func (t *Table) Load(ctx context.Context) error {
	if t.persist == nil {
		return nil
	}
	records, err := t.persist.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Load(records)
}

// Seed replaces the table content without persisting it.
func (t *Table) Seed(records []domain.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Load(records)
}

// OnMutation registers fn to run after every persisted mutation.
func (t *Table) OnMutation(fn func(domain.Mutation)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Subscribe registers fn for store events. fn runs with the table locked and
// must not call back into the table.
func (t *Table) Subscribe(fn func(StoreEvent)) func() {
	t.mu.Lock()
	unsubscribe := t.store.Subscribe(fn)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		unsubscribe()
	}
}

// Schema returns the record contract.
func (t *Table) Schema() domain.Schema {
	return t.store.Schema()
}

// Variant returns the configured feature set.
func (t *Table) Variant() Variant {
	return t.variant
}

// Records returns every record in canonical order.
func (t *Table) Records() []domain.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Records()
}

// IDs returns the canonical order.
func (t *Table) IDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.IDs()
}

// Len returns the number of records.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Len()
}

// Get returns one record.
func (t *Table) Get(id int) (domain.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Get(id)
}

// View computes one page of the table.
func (t *Table) View(vs ViewState) ViewResult {
	return ComputeView(t.Schema(), t.Records(), vs)
}

// Facets lists distinct values of a column.
func (t *Table) Facets(field domain.Field) []FacetValue {
	return Facets(t.Schema(), t.Records(), field)
}

// Insert appends a record. A zero id is replaced by the next free id.
func (t *Table) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	var out domain.Record
	err := t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		if rec.ID == 0 {
			rec.ID = s.NextID()
		}
		inserted, err := s.Insert(rec)
		if err != nil {
			return domain.Mutation{}, err
		}
		out = inserted
		return domain.Mutation{
			Op:        domain.MutationInsert,
			RecordIDs: []int{inserted.ID},
			Records:   []domain.Record{inserted},
		}, nil
	})
	return out, err
}

// UpdateField applies one edit to a record.
func (t *Table) UpdateField(ctx context.Context, id int, edit domain.Edit) (domain.Record, error) {
	return t.UpdateFields(ctx, id, edit)
}

// UpdateFields applies several edits to one record atomically.
func (t *Table) UpdateFields(ctx context.Context, id int, edits ...domain.Edit) (domain.Record, error) {
	var out domain.Record
	err := t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		updated, err := s.UpdateFields(id, edits...)
		if err != nil {
			return domain.Mutation{}, err
		}
		out = updated
		return domain.Mutation{
			Op:        domain.MutationUpdate,
			RecordIDs: []int{id},
			Fields:    domain.FieldsOf(edits),
			Records:   []domain.Record{updated},
		}, nil
	})
	return out, err
}

// UpdateMany applies the same edits to several records atomically.
func (t *Table) UpdateMany(ctx context.Context, ids []int, edits ...domain.Edit) ([]domain.Record, error) {
	var out []domain.Record
	err := t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		updated, err := s.UpdateMany(ids, edits...)
		if err != nil {
			return domain.Mutation{}, err
		}
		out = updated
		return domain.Mutation{
			Op:        domain.MutationUpdate,
			RecordIDs: slices.Clone(ids),
			Fields:    domain.FieldsOf(edits),
			Records:   updated,
		}, nil
	})
	return out, err
}

// Reorder replaces the canonical order.
func (t *Table) Reorder(ctx context.Context, order []int) error {
	return t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		if err := s.Reorder(order); err != nil {
			return domain.Mutation{}, err
		}
		return domain.Mutation{Op: domain.MutationReorder, RecordIDs: slices.Clone(order)}, nil
	})
}

// Move repositions one record to index of the canonical order. Moving a
// record onto its own index persists nothing.
func (t *Table) Move(ctx context.Context, id, index int) ([]int, error) {
	var order []int
	err := t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		ids := s.IDs()
		from := slices.Index(ids, id)
		if from < 0 {
			return domain.Mutation{}, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
		}
		if index < 0 || index >= len(ids) {
			return domain.Mutation{}, fmt.Errorf("%w: move index %d outside 0..%d", domain.ErrInvariant, index, len(ids)-1)
		}
		if from == index {
			order = ids
			return domain.Mutation{}, errNoop
		}
		order = ArrayMove(ids, from, index)
		if err := s.Reorder(order); err != nil {
			return domain.Mutation{}, err
		}
		return domain.Mutation{Op: domain.MutationReorder, RecordIDs: []int{id}}, nil
	})
	return order, err
}

// Remove deletes records. Unknown ids are ignored.
func (t *Table) Remove(ctx context.Context, ids ...int) ([]int, error) {
	var removed []int
	err := t.commit(ctx, func(s *RowStore) (domain.Mutation, error) {
		removed = s.Remove(ids...)
		if len(removed) == 0 {
			return domain.Mutation{}, errNoop
		}
		return domain.Mutation{Op: domain.MutationRemove, RecordIDs: slices.Clone(removed)}, nil
	})
	return removed, err
}

// errNoop marks a mutation that changed nothing and needs no persisting.
var errNoop = errors.New("no-op mutation")

func (t *Table) commit(ctx context.Context, apply func(*RowStore) (domain.Mutation, error)) error {
	t.mu.Lock()
	snap := t.store.snapshot()
	t.store.hold()
	mutation, err := apply(t.store)
	if errors.Is(err, errNoop) {
		t.store.release(false)
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		t.store.restore(snap)
		t.store.release(false)
		t.mu.Unlock()
		return err
	}
	mutation.ID = t.idGen()
	mutation.Order = t.store.IDs()
	actor := actorFor(ctx)
	mutation.ActorID = actor.ActorID
	mutation.ActorType = actor.ActorType
	mutation.OccurredAt = t.clock().UTC()
	if t.persist != nil {
		if err := t.persist.Persist(ctx, mutation); err != nil {
			t.store.restore(snap)
			t.store.release(false)
			t.mu.Unlock()
			return fmt.Errorf("persist %s: %w", mutation.Op, err)
		}
	}
	t.store.release(true)
	hooks := slices.Clone(t.hooks)
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(mutation)
	}
	return nil
}
