package app

import (
	"context"

	"github.com/hylla/sectboard/internal/domain"
)

// CheckState is the tri-state of a "select all on page" checkbox.
type CheckState int

// CheckState values.
const (
	CheckNone CheckState = iota
	CheckSome
	CheckAll
)

// selectionSource is the slice of Table the selection controller needs.
type selectionSource interface {
	IDs() []int
	Subscribe(func(StoreEvent)) func()
	Remove(context.Context, ...int) ([]int, error)
	UpdateMany(context.Context, []int, ...domain.Edit) ([]domain.Record, error)
}

// Selection tracks selected record ids by identity across view changes.
type Selection struct {
	src         selectionSource
	selected    map[int]struct{}
	unsubscribe func()
}

// NewSelection constructs an empty selection that prunes ids removed from src.
func NewSelection(src selectionSource) *Selection {
	s := &Selection{src: src, selected: map[int]struct{}{}}
	s.unsubscribe = src.Subscribe(s.prune)
	return s
}

// Close stops listening to store mutations.
func (s *Selection) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Selection) prune(ev StoreEvent) {
	for _, id := range ev.Removed {
		delete(s.selected, id)
	}
}

// Toggle flips one id and reports whether it is now selected.
func (s *Selection) Toggle(id int) bool {
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// ToggleAll selects every visible id, or unselects them all when every one
// of them is already selected.
func (s *Selection) ToggleAll(visibleIDs []int) {
	if s.PageState(visibleIDs) == CheckAll {
		for _, id := range visibleIDs {
			delete(s.selected, id)
		}
		return
	}
	for _, id := range visibleIDs {
		s.selected[id] = struct{}{}
	}
}

// PageState reports how many of visibleIDs are selected.
func (s *Selection) PageState(visibleIDs []int) CheckState {
	n := 0
	for _, id := range visibleIDs {
		if _, ok := s.selected[id]; ok {
			n++
		}
	}
	switch {
	case n == 0:
		return CheckNone
	case n == len(visibleIDs):
		return CheckAll
	default:
		return CheckSome
	}
}

// Clear unselects everything.
func (s *Selection) Clear() {
	clear(s.selected)
}

// IsSelected reports whether id is selected.
func (s *Selection) IsSelected(id int) bool {
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selected ids that are still live, in canonical order.
func (s *Selection) SelectedIDs() []int {
	var out []int
	for _, id := range s.src.IDs() {
		if _, ok := s.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Count returns the number of live selected ids.
func (s *Selection) Count() int {
	return len(s.SelectedIDs())
}

// CountIn returns how many of ids are selected.
func (s *Selection) CountIn(ids []int) int {
	n := 0
	for _, id := range ids {
		if _, ok := s.selected[id]; ok {
			n++
		}
	}
	return n
}

// BulkDelete removes every live selected record and clears the selection.
func (s *Selection) BulkDelete(ctx context.Context) ([]int, error) {
	ids := s.SelectedIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	removed, err := s.src.Remove(ctx, ids...)
	if err != nil {
		return nil, err
	}
	s.Clear()
	return removed, nil
}

// BulkEdit applies edits to every live selected record atomically and clears
// the selection.
func (s *Selection) BulkEdit(ctx context.Context, edits ...domain.Edit) ([]domain.Record, error) {
	ids := s.SelectedIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	updated, err := s.src.UpdateMany(ctx, ids, edits...)
	if err != nil {
		return nil, err
	}
	s.Clear()
	return updated, nil
}
