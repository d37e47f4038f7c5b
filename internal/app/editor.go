package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/hylla/sectboard/internal/domain"
)

// EditorState is the lifecycle state of a row detail editor.
type EditorState int

// EditorState values.
const (
	EditorClosed EditorState = iota
	EditorOpen
	EditorSaving
)

// String returns a readable state name.
func (s EditorState) String() string {
	switch s {
	case EditorClosed:
		return "closed"
	case EditorOpen:
		return "open"
	case EditorSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// recordEditor is the slice of Table the editors need.
type recordEditor interface {
	Get(int) (domain.Record, error)
	Schema() domain.Schema
	UpdateFields(context.Context, int, ...domain.Edit) (domain.Record, error)
}

// Editors owns every open detail editor, at most one per record.
type Editors struct {
	target recordEditor
	open   map[int]*Editor
}

// NewEditors constructs an editor registry over target.
func NewEditors(target recordEditor) *Editors {
	return &Editors{target: target, open: map[int]*Editor{}}
}

// Open starts editing a record. When the record already has an open editor,
// that editor and its staged changes are returned with reused set, rebased
// onto the live record.
func (e *Editors) Open(id int) (ed *Editor, reused bool, err error) {
	if existing, ok := e.open[id]; ok {
		if existing.state == EditorOpen {
			if live, err := e.target.Get(id); err == nil {
				existing.buf.Rebase(live)
			}
		}
		return existing, true, nil
	}
	rec, err := e.target.Get(id)
	if err != nil {
		return nil, false, err
	}
	ed = &Editor{parent: e, buf: domain.NewEditBuffer(rec), state: EditorOpen}
	e.open[id] = ed
	return ed, false, nil
}

// Lookup returns the open editor of a record.
func (e *Editors) Lookup(id int) (*Editor, bool) {
	ed, ok := e.open[id]
	return ed, ok
}

// OpenIDs lists records with an open editor in ascending id order.
func (e *Editors) OpenIDs() []int {
	ids := make([]int, 0, len(e.open))
	for id := range e.open {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Editors) close(id int) {
	delete(e.open, id)
}

// Editor stages changes to one record in an EditBuffer.
type Editor struct {
	parent *Editors
	buf    *domain.EditBuffer
	state  EditorState
}

// ID returns the edited record id.
func (ed *Editor) ID() int {
	return ed.buf.ID()
}

// State returns the editor lifecycle state.
func (ed *Editor) State() EditorState {
	return ed.state
}

// Record returns the staged record.
func (ed *Editor) Record() domain.Record {
	return ed.buf.Record()
}

// Dirty lists fields changed in the buffer.
func (ed *Editor) Dirty() []domain.Field {
	return ed.buf.Dirty()
}

// Set stages one edit. The store is not touched.
func (ed *Editor) Set(edit domain.Edit) error {
	if ed.state != EditorOpen {
		return fmt.Errorf("edit record %d while %s: %w", ed.ID(), ed.state, ErrInvalidState)
	}
	ed.buf.Set(edit)
	return nil
}

// Cancel discards the buffer and closes the editor.
func (ed *Editor) Cancel() {
	if ed.state == EditorClosed {
		return
	}
	ed.state = EditorClosed
	ed.parent.close(ed.ID())
}

// StagedEdits returns the edits of the fields changed in the buffer.
func (ed *Editor) StagedEdits() []domain.Edit {
	return ed.buf.StagedEdits()
}

// BeginSave rebases the buffer onto the live record and validates it, so
// changes committed elsewhere while the editor was open are kept. On a field
// error the editor stays open and the *domain.ValidationError is returned.
func (ed *Editor) BeginSave() error {
	if ed.state != EditorOpen {
		return fmt.Errorf("save record %d while %s: %w", ed.ID(), ed.state, ErrInvalidState)
	}
	live, err := ed.parent.target.Get(ed.ID())
	if err != nil {
		return err
	}
	ed.buf.Rebase(live)
	if err := ed.parent.target.Schema().Validate(ed.buf.Record()); err != nil {
		return err
	}
	ed.state = EditorSaving
	return nil
}

// AbortSave returns a saving editor to open without committing.
func (ed *Editor) AbortSave() {
	if ed.state == EditorSaving {
		ed.state = EditorOpen
	}
}

// CompleteSave commits the staged fields as one atomic update and closes the
// editor. Fields the user did not touch are left as they are in the store. A
// failed commit returns the editor to open.
func (ed *Editor) CompleteSave(ctx context.Context) (domain.Record, error) {
	if ed.state != EditorSaving {
		return domain.Record{}, fmt.Errorf("complete save of record %d while %s: %w", ed.ID(), ed.state, ErrInvalidState)
	}
	edits := ed.buf.StagedEdits()
	if len(edits) == 0 {
		ed.state = EditorClosed
		ed.parent.close(ed.ID())
		return ed.parent.target.Get(ed.ID())
	}
	rec, err := ed.parent.target.UpdateFields(ctx, ed.ID(), edits...)
	if err != nil {
		ed.state = EditorOpen
		return domain.Record{}, err
	}
	ed.state = EditorClosed
	ed.parent.close(ed.ID())
	return rec, nil
}

// Save validates and commits in one step.
func (ed *Editor) Save(ctx context.Context) (domain.Record, error) {
	if err := ed.BeginSave(); err != nil {
		return domain.Record{}, err
	}
	return ed.CompleteSave(ctx)
}
