package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
)

// editorFields lists the form fields of the detail editor for the variant.
func (m Model) editorFields() []domain.Field {
	out := []domain.Field{}
	for _, f := range m.table.Variant().Columns() {
		if f != domain.FieldID {
			out = append(out, f)
		}
	}
	return out
}

// openEditor opens the detail editor of the row under the cursor. An editor
// left open with staged changes is resumed instead of reset.
func (m Model) openEditor() (tea.Model, tea.Cmd) {
	rec, ok := m.currentRecord()
	if !ok {
		return m, nil
	}
	ed, reused, err := m.editors.Open(rec.ID)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.mode = modeEditor
	m.editorID = rec.ID
	m.editorErr = ""
	m.editorFocus = 0
	m.loadEditorInputs(ed.Record())
	if reused && len(ed.Dirty()) > 0 {
		m.status = "restored unsaved changes"
	} else {
		m.status = "editing " + truncate(rec.Header, 32)
	}
	return m, m.focusEditorInput(0)
}

// loadEditorInputs builds one input per form field from the staged record.
func (m *Model) loadEditorInputs(rec domain.Record) {
	fields := m.editorFields()
	m.editorInputs = make([]textinput.Model, 0, len(fields))
	for _, f := range fields {
		placeholder := ""
		switch f {
		case domain.FieldDueDate:
			placeholder = "YYYY-MM-DD"
		case domain.FieldTags:
			placeholder = "comma separated"
		case domain.FieldType, domain.FieldStatus, domain.FieldPriority, domain.FieldReviewer:
			placeholder = "←/→ to cycle"
		}
		value := rec.Value(f)
		if f == domain.FieldReviewer && !rec.Assigned() {
			value = ""
		}
		m.editorInputs = append(m.editorInputs, newModalInput(fmt.Sprintf("%-12s", columnTitle(f)+":"), placeholder, value, 2000))
	}
}

// focusEditorInput moves form focus to idx.
func (m *Model) focusEditorInput(idx int) tea.Cmd {
	if len(m.editorInputs) == 0 {
		return nil
	}
	for i := range m.editorInputs {
		m.editorInputs[i].Blur()
	}
	m.editorFocus = clamp(idx, 0, len(m.editorInputs)-1)
	m.editorInputs[m.editorFocus].CursorEnd()
	return m.editorInputs[m.editorFocus].Focus()
}

// editorChoices returns the fixed options of an enum field, or nil for free text.
func (m Model) editorChoices(f domain.Field) []string {
	switch f {
	case domain.FieldType:
		types := m.table.Schema().SectionTypes
		out := make([]string, 0, len(types))
		for _, t := range types {
			out = append(out, string(t))
		}
		return out
	case domain.FieldStatus:
		out := []string{}
		for _, s := range domain.Statuses() {
			out = append(out, string(s))
		}
		return out
	case domain.FieldPriority:
		out := []string{}
		for _, p := range domain.Priorities() {
			out = append(out, string(p))
		}
		return out
	case domain.FieldReviewer:
		return append([]string{""}, m.reviewers...)
	}
	return nil
}

// handleEditorKey handles keys while the detail editor is showing.
func (m Model) handleEditorKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	ed, ok := m.editors.Lookup(m.editorID)
	if !ok {
		m.mode = modeNone
		return m, nil
	}
	if ed.State() == app.EditorSaving {
		return m, nil
	}
	fields := m.editorFields()
	switch msg.String() {
	case "esc":
		ed.Cancel()
		m.mode = modeNone
		m.status = "changes discarded"
		return m, nil
	case "ctrl+w":
		if err := m.stageEditorInputs(ed); err != nil {
			m.editorErr = err.Error()
			return m, nil
		}
		m.mode = modeNone
		m.status = "draft kept; reopen the row to continue"
		return m, nil
	case "ctrl+p":
		if m.table.Variant() == app.VariantCompact {
			m.status = "preview unavailable in compact view"
			return m, nil
		}
		m.editorPreview = !m.editorPreview
		return m, nil
	case "ctrl+s":
		return m.beginDetailSave(ed)
	case "tab", "down":
		return m, m.focusEditorInput(wrapIndex(m.editorFocus, 1, len(m.editorInputs)))
	case "shift+tab", "up":
		return m, m.focusEditorInput(wrapIndex(m.editorFocus, -1, len(m.editorInputs)))
	case "left", "right":
		if m.editorFocus < len(fields) {
			if choices := m.editorChoices(fields[m.editorFocus]); len(choices) > 0 {
				delta := 1
				if msg.String() == "left" {
					delta = -1
				}
				current := slices.IndexFunc(choices, func(c string) bool {
					return strings.EqualFold(c, strings.TrimSpace(m.editorInputs[m.editorFocus].Value()))
				})
				next := wrapIndex(current, delta, len(choices))
				if current < 0 && delta < 0 {
					next = len(choices) - 1
				}
				m.editorInputs[m.editorFocus].SetValue(choices[next])
				m.editorInputs[m.editorFocus].CursorEnd()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.editorInputs[m.editorFocus], cmd = m.editorInputs[m.editorFocus].Update(msg)
	return m, cmd
}

// stageEditorInputs copies changed form values into the editor buffer.
func (m *Model) stageEditorInputs(ed *app.Editor) error {
	rec := ed.Record()
	for i, f := range m.editorFields() {
		if i >= len(m.editorInputs) {
			break
		}
		raw := strings.TrimSpace(m.editorInputs[i].Value())
		current := rec.Value(f)
		if f == domain.FieldReviewer && !rec.Assigned() {
			current = ""
		}
		if raw == current {
			continue
		}
		edit, err := domain.ParseEdit(f, raw)
		if err != nil {
			m.editorFocus = i
			return err
		}
		if err := ed.Set(edit); err != nil {
			return err
		}
	}
	return nil
}

// beginDetailSave validates the form and schedules the delayed commit.
func (m Model) beginDetailSave(ed *app.Editor) (tea.Model, tea.Cmd) {
	m.editorErr = ""
	if err := m.stageEditorInputs(ed); err != nil {
		m.editorErr = err.Error()
		return m, m.focusEditorInput(m.editorFocus)
	}
	if err := ed.BeginSave(); err != nil {
		m.editorErr = err.Error()
		if verr, ok := isValidationError(err); ok {
			if idx := slices.Index(m.editorFields(), verr.Field); idx >= 0 {
				return m, m.focusEditorInput(idx)
			}
		}
		return m, nil
	}
	id := ed.ID()
	handle, superseded := m.saves.Begin(id, ed.StagedEdits()...)
	m.log.Debug("detail save started", "id", id, "fields", ed.Dirty(), "superseded", superseded)
	loading := m.pushToast(saveToastKey(id), "Saving changes...", toastInfo)
	return m, tea.Batch(loading, tea.Tick(m.detailDelay, func(time.Time) tea.Msg {
		return detailSaveMsg{handle: handle}
	}))
}

// finishDetailSave commits a validated editor buffer unless a newer save for
// the record took over, in which case the editor goes back to open.
func (m Model) finishDetailSave(h app.SaveHandle) (tea.Model, tea.Cmd) {
	id := h.RecordID
	ed, ok := m.editors.Lookup(id)
	if !m.saves.Finish(h) {
		m.log.Debug("detail save superseded", "id", id, "token", h.Token)
		if ok {
			ed.AbortSave()
		}
		return m, nil
	}
	if !ok || ed.State() != app.EditorSaving {
		return m, nil
	}
	rec, err := ed.CompleteSave(context.Background())
	m.refresh()
	if err != nil {
		m.log.Warn("detail save failed", "id", id, "err", err)
		if m.mode == modeEditor && m.editorID == id {
			m.editorErr = err.Error()
		}
		return m, m.pushToast(saveToastKey(id), "Failed to save changes", toastError)
	}
	m.log.Info("detail save committed", "id", rec.ID)
	if m.mode == modeEditor && m.editorID == id {
		m.mode = modeNone
	}
	m.status = "saved " + truncate(rec.Header, 32)
	return m, m.pushToast(saveToastKey(id), "Changes saved successfully", toastSuccess)
}
