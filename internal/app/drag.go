package app

import (
	"context"
	"fmt"
	"slices"
)

// DragPhase is the state of a reorder gesture.
type DragPhase int

// DragPhase values.
const (
	DragIdle DragPhase = iota
	DragDragging
	DragCommitting
	DragCancelled
)

// String returns a readable phase name.
func (p DragPhase) String() string {
	switch p {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragCommitting:
		return "committing"
	case DragCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// reorderTarget is the slice of Table the drag controller needs.
type reorderTarget interface {
	IDs() []int
	Reorder(context.Context, []int) error
}

// DragController runs one reorder gesture at a time. Positions are indexes
// into the displayed rows; commits are translated onto the canonical order.
type DragController struct {
	target    reorderTarget
	onReorder func([]int)

	phase     DragPhase
	last      DragPhase
	displayed []int
	origin    int
	over      int
}

// NewDragController constructs an idle controller. onReorder, when set, runs
// after every committed reorder with the new canonical order.
func NewDragController(target reorderTarget, onReorder func([]int)) *DragController {
	return &DragController{target: target, onReorder: onReorder, over: -1}
}

// Begin picks up the row at originIndex of displayedIDs.
func (d *DragController) Begin(displayedIDs []int, originIndex int) error {
	if d.phase != DragIdle {
		return fmt.Errorf("begin drag while %s: %w", d.phase, ErrInvalidState)
	}
	if originIndex < 0 || originIndex >= len(displayedIDs) {
		return fmt.Errorf("begin drag at %d of %d rows: %w", originIndex, len(displayedIDs), ErrInvalidState)
	}
	d.displayed = slices.Clone(displayedIDs)
	d.origin = originIndex
	d.over = originIndex
	d.phase = DragDragging
	return nil
}

// Move hovers the dragged row over a displayed index. Indexes outside the
// displayed rows mean no valid drop target.
func (d *DragController) Move(index int) {
	if d.phase != DragDragging {
		return
	}
	d.over = index
}

// Nudge moves the hover target by delta rows, staying on the displayed rows.
func (d *DragController) Nudge(delta int) {
	if d.phase != DragDragging {
		return
	}
	d.over = min(max(d.over+delta, 0), len(d.displayed)-1)
}

// Commit drops the row. It reports whether a reorder was committed; dropping
// onto the origin or outside the rows cancels the gesture.
func (d *DragController) Commit(ctx context.Context) (bool, error) {
	if d.phase != DragDragging {
		return false, fmt.Errorf("commit drag while %s: %w", d.phase, ErrInvalidState)
	}
	if d.over < 0 || d.over >= len(d.displayed) || d.over == d.origin {
		d.Cancel()
		return false, nil
	}
	activeID := d.displayed[d.origin]
	overID := d.displayed[d.over]

	canonical := d.target.IDs()
	from := slices.Index(canonical, activeID)
	to := slices.Index(canonical, overID)
	if from < 0 || to < 0 {
		d.Cancel()
		return false, nil
	}
	order := ArrayMove(canonical, from, to)

	d.phase = DragCommitting
	err := d.target.Reorder(ctx, order)
	d.reset(DragCommitting)
	if err != nil {
		return false, err
	}
	if d.onReorder != nil {
		d.onReorder(slices.Clone(order))
	}
	return true, nil
}

// Cancel abandons the gesture without mutating anything.
func (d *DragController) Cancel() {
	if d.phase != DragDragging {
		return
	}
	d.reset(DragCancelled)
}

func (d *DragController) reset(outcome DragPhase) {
	d.last = outcome
	d.phase = DragIdle
	d.displayed = nil
	d.origin = 0
	d.over = -1
}

// Phase returns the current state.
func (d *DragController) Phase() DragPhase {
	return d.phase
}

// LastOutcome returns DragCommitting or DragCancelled for the previous
// gesture, or DragIdle before the first one finishes.
func (d *DragController) LastOutcome() DragPhase {
	return d.last
}

// Dragging reports whether a gesture is in progress.
func (d *DragController) Dragging() bool {
	return d.phase == DragDragging
}

// DraggedID returns the id of the row being dragged.
func (d *DragController) DraggedID() (int, bool) {
	if d.phase != DragDragging {
		return 0, false
	}
	return d.displayed[d.origin], true
}

// Over returns the displayed index under the dragged row.
func (d *DragController) Over() int {
	return d.over
}

// Preview returns the displayed ids as they would appear after dropping here.
func (d *DragController) Preview() []int {
	if d.phase != DragDragging || d.over < 0 || d.over >= len(d.displayed) {
		return slices.Clone(d.displayed)
	}
	return ArrayMove(d.displayed, d.origin, d.over)
}

// ArrayMove returns a copy of ids with the element at from moved to to.
// Elements in between shift by one.
func ArrayMove(ids []int, from, to int) []int {
	out := slices.Clone(ids)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	id := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, id)
}
