package app

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hylla/sectboard/internal/domain"
	"pgregory.net/rapid"
)

func newLoadedStore(t *testing.T, n int) *RowStore {
	t.Helper()
	s := NewRowStore(domain.DefaultSchema())
	if err := s.Load(sampleRecords(n)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func storeIDs(s *RowStore) []int {
	var out []int
	for rec := range s.All() {
		out = append(out, rec.ID)
	}
	return out
}

func TestRowStoreReorderAnyPermutation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		s := NewRowStore(domain.DefaultSchema())
		if err := s.Load(sampleRecords(n)); err != nil {
			rt.Fatalf("Load() error = %v", err)
		}
		perm := rapid.Permutation(s.IDs()).Draw(rt, "perm")
		if err := s.Reorder(perm); err != nil {
			rt.Fatalf("Reorder() error = %v", err)
		}
		if got := storeIDs(s); !slices.Equal(got, perm) {
			rt.Fatalf("All() order = %v, want %v", got, perm)
		}
		for rec := range s.All() {
			if want := sampleRecord(rec.ID, rec.Header); rec.Target != want.Target {
				rt.Fatalf("record %d lost its fields after reorder", rec.ID)
			}
		}
	})
}

func TestRowStoreReorderRejectsNonPermutations(t *testing.T) {
	cases := map[string][]int{
		"missing":   {1, 2},
		"duplicate": {1, 2, 2},
		"unknown":   {1, 2, 4},
		"extra":     {1, 2, 3, 4},
		"empty":     {},
	}
	for name, order := range cases {
		t.Run(name, func(t *testing.T) {
			s := newLoadedStore(t, 3)
			if err := s.Reorder(order); !errors.Is(err, domain.ErrInvariant) {
				t.Fatalf("expected ErrInvariant, got %v", err)
			}
			if diff := cmp.Diff([]int{1, 2, 3}, storeIDs(s)); diff != "" {
				t.Fatalf("order changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRowStoreInsertValidation(t *testing.T) {
	s := newLoadedStore(t, 2)
	if _, err := s.Insert(sampleRecord(2, "again")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	bad := sampleRecord(3, "")
	if _, err := s.Insert(bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing header rejection, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected store unchanged, len %d", s.Len())
	}
	if _, err := s.Insert(sampleRecord(7, "Seven")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 7}, s.IDs()); diff != "" {
		t.Fatalf("insert should append (-want +got):\n%s", diff)
	}
	if s.NextID() != 8 {
		t.Fatalf("unexpected next id %d", s.NextID())
	}
}

func TestRowStoreUpdateNotifiesSubscribers(t *testing.T) {
	s := newLoadedStore(t, 2)
	var got []StoreEvent
	unsubscribe := s.Subscribe(func(ev StoreEvent) { got = append(got, ev) })

	if _, err := s.UpdateField(1, domain.StatusEdit{Value: domain.StatusDone}); err != nil {
		t.Fatalf("UpdateField() error = %v", err)
	}
	if _, err := s.UpdateField(5, domain.StatusEdit{Value: domain.StatusDone}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	unsubscribe()
	s.Remove(2)

	want := []StoreEvent{{Op: domain.MutationUpdate, IDs: []int{1}, Fields: []domain.Field{domain.FieldStatus}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRowStoreRemoveIsIdempotent(t *testing.T) {
	s := newLoadedStore(t, 4)
	var removedEvents [][]int
	s.Subscribe(func(ev StoreEvent) { removedEvents = append(removedEvents, ev.Removed) })

	if got := s.Remove(2, 4, 99); !slices.Equal(got, []int{2, 4}) {
		t.Fatalf("Remove() = %v", got)
	}
	if got := s.Remove(2); got != nil {
		t.Fatalf("expected second remove to be a no-op, got %v", got)
	}
	if diff := cmp.Diff([]int{1, 3}, s.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if len(removedEvents) != 1 {
		t.Fatalf("expected a single notification, got %d", len(removedEvents))
	}
}

func TestRowStoreReturnsCopies(t *testing.T) {
	s := NewRowStore(domain.DefaultSchema())
	rec := sampleRecord(1, "Tagged")
	rec.Tags = []string{"draft"}
	if _, err := s.Insert(rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := s.Get(1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Tags[0] = "mutated"
	again, _ := s.Get(1)
	if again.Tags[0] != "draft" {
		t.Fatalf("store shared tags with caller: %v", again.Tags)
	}
}

func TestRowStoreSnapshotRestore(t *testing.T) {
	s := newLoadedStore(t, 3)
	snap := s.snapshot()
	s.Remove(1)
	if _, err := s.UpdateField(2, domain.HeaderEdit{Value: "changed"}); err != nil {
		t.Fatalf("UpdateField() error = %v", err)
	}
	var restored StoreEvent
	s.Subscribe(func(ev StoreEvent) { restored = ev })
	s.restore(snap)
	if diff := cmp.Diff(sampleRecords(3), s.Records()); diff != "" {
		t.Fatalf("restore mismatch (-want +got):\n%s", diff)
	}
	if restored.Op != opLoad {
		t.Fatalf("expected load event, got %q", restored.Op)
	}
}
