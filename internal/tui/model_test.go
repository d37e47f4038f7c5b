package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
	"github.com/hylla/sectboard/internal/nav"
)

type fakePersistence struct {
	records   []domain.Record
	mutations []domain.Mutation
	failNext  error
}

func (f *fakePersistence) LoadRecords(context.Context) ([]domain.Record, error) {
	return slices.Clone(f.records), nil
}

func (f *fakePersistence) Persist(_ context.Context, m domain.Mutation) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.mutations = append(f.mutations, m)
	return nil
}

type fakeClipboard struct {
	written []string
	err     error
}

func (f *fakeClipboard) write(text string) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, text)
	return nil
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testRecords(n int) []domain.Record {
	statuses := domain.Statuses()
	out := make([]domain.Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Record{
			ID:       i,
			Header:   fmt.Sprintf("Section %02d", i),
			Type:     "Narrative",
			Status:   statuses[(i-1)%len(statuses)],
			Target:   fmt.Sprint(i * 2),
			Limit:    fmt.Sprint(i),
			Reviewer: domain.UnassignedReviewer,
			Priority: domain.PriorityMedium,
		})
	}
	return out
}

func newTestModel(t *testing.T, records []domain.Record, opts ...Option) (Model, *app.Table, *fakePersistence) {
	t.Helper()
	repo := &fakePersistence{records: records}
	tbl := app.NewTable(repo, nil, func() time.Time { return fixedNow }, app.TableConfig{})
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	base := []Option{WithSaveDelays(0, 0), WithClock(func() time.Time { return fixedNow })}
	m := NewModel(tbl, append(base, opts...)...)
	return loadReadyModel(t, m), tbl, repo
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 160, Height: 48})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

// applyCmd runs cmd and feeds its messages back into the model. Commands that
// do not return promptly, such as toast expiry timers and cursor blinks, are
// dropped.
func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0 && steps < 32; steps++ {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := runCmd(next)
		if !ok {
			continue
		}
		if batch, isBatch := msg.(tea.BatchMsg); isBatch {
			queue = append(queue, batch...)
			continue
		}
		updated, nextCmd := out.Update(msg)
		casted, isModel := updated.(Model)
		if !isModel {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		queue = append(queue, nextCmd)
	}
	return out
}

func runCmd(cmd tea.Cmd) (tea.Msg, bool) {
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg, msg != nil
	case <-time.After(100 * time.Millisecond):
		return nil, false
	}
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func keyCode(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func keyCtrl(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Mod: tea.ModCtrl}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = applyMsg(t, m, keyRune(r))
	}
	return m
}

func toastTexts(m Model) []string {
	out := make([]string, 0, len(m.toasts))
	for _, toast := range m.toasts {
		out = append(out, toast.text)
	}
	return out
}

func hasToast(m Model, text string) bool {
	return slices.Contains(toastTexts(m), text)
}

func TestModelRendersFirstPage(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(12), WithRoute(nav.PathSections))
	if got := len(m.result.PageRows); got != 10 {
		t.Fatalf("expected 10 rows on the first page, got %d", got)
	}
	out := m.renderScreen()
	for _, want := range []string{"Section 01", "Section 10", "Page 1 of 2", "0 of 12 row(s) selected."} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
	if strings.Contains(out, "Section 11") {
		t.Fatal("expected second page rows to be hidden")
	}
}

func TestModelPagingAndPageSize(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(25))
	m = applyMsg(t, m, keyRune('l'))
	if m.result.PageIndex != 1 || m.result.PageRows[0].ID != 11 {
		t.Fatalf("expected second page, got index %d", m.result.PageIndex)
	}
	m = applyMsg(t, m, keyRune('>'))
	if m.result.PageIndex != 2 || len(m.result.PageRows) != 5 {
		t.Fatalf("expected last partial page, got index %d rows %d", m.result.PageIndex, len(m.result.PageRows))
	}
	m = applyMsg(t, m, keyRune('l'))
	if m.result.PageIndex != 2 {
		t.Fatalf("expected next page past the end to stay put, got %d", m.result.PageIndex)
	}
	m = applyMsg(t, m, keyRune('p'))
	if m.result.PageSize != 20 || m.result.PageCount != 2 {
		t.Fatalf("expected page size 20 over 2 pages, got %d/%d", m.result.PageSize, m.result.PageCount)
	}
	if m.result.PageIndex != 1 {
		t.Fatalf("expected page index clamped to 1, got %d", m.result.PageIndex)
	}
	m = applyMsg(t, m, keyRune('<'))
	if m.result.PageIndex != 0 {
		t.Fatalf("expected first page, got %d", m.result.PageIndex)
	}
}

func TestModelSortAndSearch(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(12))
	m = applyMsg(t, m, keyRune('s'))
	m = applyMsg(t, m, keyRune('s'))
	if m.view.SortKey != domain.FieldHeader || m.view.SortDirection != app.SortDesc {
		t.Fatalf("expected header descending, got %q %q", m.view.SortKey, m.view.SortDirection)
	}
	if m.result.PageRows[0].Header != "Section 12" {
		t.Fatalf("expected Section 12 first, got %q", m.result.PageRows[0].Header)
	}
	m = applyMsg(t, m, keyRune('S'))
	if m.view.SortKey != "" || m.result.PageRows[0].ID != 1 {
		t.Fatalf("expected canonical order after clearing sort, got key %q", m.view.SortKey)
	}

	m = applyMsg(t, m, keyRune('/'))
	if m.mode != modeSearch {
		t.Fatalf("expected search mode, got %v", m.mode)
	}
	m = typeText(t, m, "section 07")
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if m.mode != modeNone || m.result.TotalFiltered != 1 || m.result.PageRows[0].ID != 7 {
		t.Fatalf("expected one match for search, got %d", m.result.TotalFiltered)
	}
	m = applyMsg(t, m, keyCode(tea.KeyEscape))
	if m.view.GlobalSearch != "" || m.result.TotalFiltered != 12 {
		t.Fatalf("expected esc to clear the search, got %q", m.view.GlobalSearch)
	}
}

func TestModelFilterMenuTogglesFacet(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(9))
	m = applyMsg(t, m, keyCode(tea.KeyTab))
	m = applyMsg(t, m, keyCode(tea.KeyTab))
	if got := m.focusedColumn(); got != domain.FieldStatus {
		t.Fatalf("expected status column focus, got %q", got)
	}
	m = applyMsg(t, m, keyRune('f'))
	if m.mode != modeFilter || len(m.filterFacets) != 3 {
		t.Fatalf("expected status facet menu, got mode %v facets %#v", m.mode, m.filterFacets)
	}
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if m.result.TotalFiltered != 3 || m.view.ActiveFilterCount() != 1 {
		t.Fatalf("expected 3 filtered rows, got %d", m.result.TotalFiltered)
	}
	m = applyMsg(t, m, keyCode(tea.KeyEscape))
	m = applyMsg(t, m, keyRune('F'))
	if m.result.TotalFiltered != 9 {
		t.Fatalf("expected filters cleared, got %d", m.result.TotalFiltered)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift})
	m = applyMsg(t, m, keyRune('f'))
	if m.mode != modeNone || !strings.Contains(m.status, "cannot be filtered") {
		t.Fatalf("expected header column to reject filtering, mode %v status %q", m.mode, m.status)
	}
}

func TestModelColumnMenuHidesColumn(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(3))
	m = applyMsg(t, m, keyRune('c'))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if slices.Contains(m.shownColumns(), domain.FieldType) {
		t.Fatalf("expected type column hidden, got %#v", m.shownColumns())
	}
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if !slices.Contains(m.shownColumns(), domain.FieldType) {
		t.Fatalf("expected type column restored, got %#v", m.shownColumns())
	}
	if !slices.Contains(m.shownColumns(), domain.FieldHeader) {
		t.Fatal("expected header to stay visible")
	}
}

func TestModelInlineTargetSave(t *testing.T) {
	m, tbl, repo := newTestModel(t, testRecords(3))
	m = applyMsg(t, m, keyRune('t'))
	if m.mode != modeInlineEdit || m.inlineInput.Value() != "2" {
		t.Fatalf("expected inline target edit seeded with 2, got mode %v value %q", m.mode, m.inlineInput.Value())
	}
	m = applyMsg(t, m, keyCode(tea.KeyBackspace))
	m = typeText(t, m, "15")
	m = applyMsg(t, m, keyCode(tea.KeyEnter))

	rec, err := tbl.Get(1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Target != "15" {
		t.Fatalf("expected target 15, got %q", rec.Target)
	}
	if !hasToast(m, "Target updated to 15") {
		t.Fatalf("expected success toast, got %#v", toastTexts(m))
	}
	if len(repo.mutations) != 1 || repo.mutations[0].Op != domain.MutationUpdate {
		t.Fatalf("expected one persisted update, got %#v", repo.mutations)
	}
	if m.saves.Pending(1) {
		t.Fatal("expected no pending save after completion")
	}
}

func TestModelInlineSaveFailureShowsError(t *testing.T) {
	m, tbl, repo := newTestModel(t, testRecords(2))
	repo.failNext = errors.New("disk full")
	m = applyMsg(t, m, keyRune('L'))
	m = typeText(t, m, "0")
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if !hasToast(m, "Failed to update limit") {
		t.Fatalf("expected failure toast, got %#v", toastTexts(m))
	}
	rec, _ := tbl.Get(1)
	if rec.Limit != "1" {
		t.Fatalf("expected limit rolled back to 1, got %q", rec.Limit)
	}
}

func TestModelSupersededInlineSaveIsIgnored(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(2))
	first, _ := m.saves.Begin(1, domain.TargetEdit{Value: "5"})
	second, superseded := m.saves.Begin(1, domain.TargetEdit{Value: "6"})
	if !superseded {
		t.Fatal("expected second save to supersede the first")
	}
	m = applyMsg(t, m, inlineSaveMsg{handle: first})
	if rec, _ := tbl.Get(1); rec.Target != "2" {
		t.Fatalf("expected superseded save to be dropped, got %q", rec.Target)
	}
	m = applyMsg(t, m, inlineSaveMsg{handle: second})
	if rec, _ := tbl.Get(1); rec.Target != "6" {
		t.Fatalf("expected latest save to win, got %q", rec.Target)
	}
	if !hasToast(m, "Target updated to 6") {
		t.Fatalf("expected success toast, got %#v", toastTexts(m))
	}
}

func TestModelReviewerPicker(t *testing.T) {
	records := testRecords(2)
	records[1].Reviewer = "Emily Whalen"
	m, tbl, _ := newTestModel(t, records)

	m = applyMsg(t, m, keyRune('v'))
	if m.mode != modePicker || len(m.pickerOptions) != 3 {
		t.Fatalf("expected reviewer picker, got mode %v options %#v", m.mode, m.pickerOptions)
	}
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if rec, _ := tbl.Get(1); rec.Reviewer != "Eddie Lake" {
		t.Fatalf("expected Eddie Lake assigned, got %q", rec.Reviewer)
	}

	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('v'))
	if m.mode != modeNone || !strings.Contains(m.status, "Emily Whalen") {
		t.Fatalf("expected assigned row to show its reviewer, got mode %v status %q", m.mode, m.status)
	}
}

func TestModelSelectionAndBulkDelete(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(12))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if got := m.selection.SelectedIDs(); !slices.Equal(got, []int{1, 2}) {
		t.Fatalf("expected rows 1 and 2 selected, got %#v", got)
	}
	if !strings.Contains(m.renderScreen(), "2 of 12 row(s) selected.") {
		t.Fatal("expected selected count in view")
	}

	m = applyMsg(t, m, keyRune('D'))
	if m.mode != modeConfirmDelete {
		t.Fatalf("expected delete confirmation, got %v", m.mode)
	}
	m = applyMsg(t, m, keyRune('y'))
	if tbl.Len() != 10 || m.selection.Count() != 0 {
		t.Fatalf("expected 10 rows and empty selection, got %d/%d", tbl.Len(), m.selection.Count())
	}
	if !hasToast(m, "Deleted 2 row(s)") {
		t.Fatalf("expected bulk delete toast, got %#v", toastTexts(m))
	}
}

func TestModelSelectAllTogglesPage(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(12))
	m = applyMsg(t, m, keyRune('A'))
	if m.selection.Count() != 10 || m.selection.PageState(m.result.PageIDs()) != app.CheckAll {
		t.Fatalf("expected whole page selected, got %d", m.selection.Count())
	}
	m = applyMsg(t, m, keyRune('A'))
	if m.selection.Count() != 0 {
		t.Fatalf("expected page unselected, got %d", m.selection.Count())
	}
}

func TestModelDeleteSingleRow(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(3))
	m = applyMsg(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('n'))
	if tbl.Len() != 3 || m.mode != modeNone {
		t.Fatalf("expected cancel to keep rows, got %d", tbl.Len())
	}
	m = applyMsg(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('y'))
	if diff := cmp.Diff([]int{2, 3}, tbl.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if !hasToast(m, "Section 01 deleted successfully") {
		t.Fatalf("expected delete toast, got %#v", toastTexts(m))
	}
}

func TestModelBulkStatus(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(4))
	m = applyMsg(t, m, keyRune('B'))
	if m.mode != modeNone || m.status != "no rows selected" {
		t.Fatalf("expected bulk status to need a selection, got %q", m.status)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, keyRune('B'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	for _, id := range []int{1, 3} {
		rec, _ := tbl.Get(id)
		if rec.Status != domain.StatusDone {
			t.Fatalf("expected row %d done, got %q", id, rec.Status)
		}
	}
	if rec, _ := tbl.Get(2); rec.Status == domain.StatusDone {
		t.Fatal("expected unselected row untouched")
	}
}

func TestModelDragReorders(t *testing.T) {
	m, tbl, repo := newTestModel(t, testRecords(5))
	m = applyMsg(t, m, keyRune('m'))
	if m.mode != modeDrag {
		t.Fatalf("expected drag mode, got %v", m.mode)
	}
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	if diff := cmp.Diff([]int{2, 3, 1, 4, 5}, m.drag.Preview()); diff != "" {
		t.Fatalf("preview mismatch (-want +got):\n%s", diff)
	}
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if diff := cmp.Diff([]int{2, 3, 1, 4, 5}, tbl.IDs()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if !hasToast(m, "Rows reordered successfully") {
		t.Fatalf("expected reorder toast, got %#v", toastTexts(m))
	}
	if m.cursor != 2 {
		t.Fatalf("expected cursor to follow the dropped row, got %d", m.cursor)
	}
	if last := repo.mutations[len(repo.mutations)-1]; last.Op != domain.MutationReorder {
		t.Fatalf("expected reorder mutation, got %q", last.Op)
	}
}

func TestModelDragCancelAndNoopDrop(t *testing.T) {
	m, tbl, repo := newTestModel(t, testRecords(3))
	m = applyMsg(t, m, keyRune('m'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyCode(tea.KeyEscape))
	if m.mode != modeNone || m.drag.LastOutcome() != app.DragCancelled {
		t.Fatalf("expected cancelled drag, got mode %v outcome %v", m.mode, m.drag.LastOutcome())
	}
	m = applyMsg(t, m, keyRune('m'))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if m.status != "move cancelled" {
		t.Fatalf("expected dropping on origin to cancel, got %q", m.status)
	}
	if len(repo.mutations) != 0 || !slices.Equal(tbl.IDs(), []int{1, 2, 3}) {
		t.Fatalf("expected no reorder, got %#v", tbl.IDs())
	}
}

func TestModelDetailEditorSave(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(3))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if m.mode != modeEditor || m.editorID != 1 {
		t.Fatalf("expected editor for row 1, got mode %v id %d", m.mode, m.editorID)
	}
	m = typeText(t, m, " draft")
	m = applyMsg(t, m, keyCode(tea.KeyTab))
	m = applyMsg(t, m, keyCode(tea.KeyTab))
	m = applyMsg(t, m, keyCode(tea.KeyRight))
	m = applyMsg(t, m, keyCtrl('s'))

	rec, _ := tbl.Get(1)
	if rec.Header != "Section 01 draft" || rec.Status != domain.StatusInProgress {
		t.Fatalf("expected header and status saved, got %q %q", rec.Header, rec.Status)
	}
	if m.mode != modeNone {
		t.Fatalf("expected editor closed after save, got %v", m.mode)
	}
	if !hasToast(m, "Changes saved successfully") {
		t.Fatalf("expected save toast, got %#v", toastTexts(m))
	}
	if len(m.editors.OpenIDs()) != 0 {
		t.Fatalf("expected no open editors, got %#v", m.editors.OpenIDs())
	}
}

func TestModelDetailEditorValidationKeepsOpen(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(2))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	dueIdx := slices.Index(m.editorFields(), domain.FieldDueDate)
	for range dueIdx {
		m = applyMsg(t, m, keyCode(tea.KeyTab))
	}
	m = typeText(t, m, "soon")
	m = applyMsg(t, m, keyCtrl('s'))
	if m.mode != modeEditor || m.editorFocus != dueIdx || m.editorErr == "" {
		t.Fatalf("expected editor to stay open on the due date, got mode %v focus %d err %q", m.mode, m.editorFocus, m.editorErr)
	}
	if rec, _ := tbl.Get(1); rec.DueDate != "" {
		t.Fatalf("expected invalid due date not to persist, got %q", rec.DueDate)
	}
}

func TestModelDetailEditorDraftAndDiscard(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(2))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	m = typeText(t, m, "!")
	m = applyMsg(t, m, keyCtrl('w'))
	if m.mode != modeNone {
		t.Fatalf("expected editor hidden, got %v", m.mode)
	}
	if rec, _ := tbl.Get(1); rec.Header != "Section 01" {
		t.Fatalf("expected draft not to be saved, got %q", rec.Header)
	}

	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if m.status != "restored unsaved changes" || m.editorInputs[0].Value() != "Section 01!" {
		t.Fatalf("expected draft restored, got status %q value %q", m.status, m.editorInputs[0].Value())
	}
	m = applyMsg(t, m, keyCode(tea.KeyEscape))
	if _, ok := m.editors.Lookup(1); ok {
		t.Fatal("expected esc to discard the editor")
	}
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if m.editorInputs[0].Value() != "Section 01" {
		t.Fatalf("expected fresh editor after discard, got %q", m.editorInputs[0].Value())
	}
}

func TestModelDetailSaveKeepsInlineTargetCommittedMeanwhile(t *testing.T) {
	m, tbl, _ := newTestModel(t, testRecords(2))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	m = typeText(t, m, "!")
	m = applyMsg(t, m, keyCtrl('w'))

	m = applyMsg(t, m, keyRune('t'))
	m = applyMsg(t, m, keyCode(tea.KeyBackspace))
	m = typeText(t, m, "15")
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if rec, _ := tbl.Get(1); rec.Target != "15" {
		t.Fatalf("expected inline target 15, got %q", rec.Target)
	}

	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	targetIdx := slices.Index(m.editorFields(), domain.FieldTarget)
	if m.mode != modeEditor || m.editorInputs[targetIdx].Value() != "15" {
		t.Fatalf("expected resumed editor showing target 15, got mode %v value %q", m.mode, m.editorInputs[targetIdx].Value())
	}
	m = applyMsg(t, m, keyCtrl('s'))
	rec, _ := tbl.Get(1)
	if rec.Header != "Section 01!" || rec.Target != "15" {
		t.Fatalf("expected header saved and target kept, got %q %q", rec.Header, rec.Target)
	}
}

func TestModelSupersededDetailSaveReopensEditor(t *testing.T) {
	m, tbl, repo := newTestModel(t, testRecords(2), WithSaveDelays(0, time.Hour))
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	m = typeText(t, m, "?")
	m = applyMsg(t, m, keyCtrl('s'))
	ed, ok := m.editors.Lookup(1)
	if !ok || ed.State() != app.EditorSaving || !m.saves.Pending(1) {
		t.Fatalf("expected detail save in flight, got ok=%v pending=%v", ok, m.saves.Pending(1))
	}

	stale := app.SaveHandle{RecordID: 1, Token: "stale"}
	inline, superseded := m.saves.Begin(1, domain.TargetEdit{Value: "8"})
	if !superseded {
		t.Fatal("expected inline save to supersede the detail save")
	}
	m = applyMsg(t, m, detailSaveMsg{handle: stale})
	if ed.State() != app.EditorOpen {
		t.Fatalf("expected superseded detail save to reopen the editor, got %v", ed.State())
	}
	if rec, _ := tbl.Get(1); rec.Header != "Section 01" || len(repo.mutations) != 0 {
		t.Fatalf("superseded detail save must not commit, got %q and %d mutations", rec.Header, len(repo.mutations))
	}
	m = applyMsg(t, m, inlineSaveMsg{handle: inline})
	if rec, _ := tbl.Get(1); rec.Target != "8" {
		t.Fatalf("expected newer inline save applied, got %q", rec.Target)
	}
}

func TestModelRefreshReloadsRecords(t *testing.T) {
	m, tbl, repo := newTestModel(t, testRecords(2))
	repo.records = testRecords(4)
	m = applyMsg(t, m, keyRune('r'))
	if tbl.Len() != 4 || m.total != 4 {
		t.Fatalf("expected reload to 4 rows, got %d/%d", tbl.Len(), m.total)
	}
	if !hasToast(m, "Data refreshed successfully") {
		t.Fatalf("expected refresh toast, got %#v", toastTexts(m))
	}
}

func TestModelReloadsOnExternalChange(t *testing.T) {
	changes := make(chan struct{}, 1)
	repo := &fakePersistence{records: testRecords(2)}
	tbl := app.NewTable(repo, nil, nil, app.TableConfig{})
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	repo.records = testRecords(3)
	changes <- struct{}{}
	m := loadReadyModel(t, NewModel(tbl, WithExternalChanges(changes)))
	if tbl.Len() != 3 || m.total != 3 {
		t.Fatalf("expected external change to reload, got %d", m.total)
	}
	if !hasToast(m, "Data refreshed from disk") {
		t.Fatalf("expected external refresh toast, got %#v", toastTexts(m))
	}
}

func TestModelCopyRow(t *testing.T) {
	clip := &fakeClipboard{}
	m, _, _ := newTestModel(t, testRecords(2), WithClipboard(clip.write))
	m = applyMsg(t, m, keyRune('y'))
	if len(clip.written) != 1 || !strings.HasPrefix(clip.written[0], "1\tSection 01\tNarrative") {
		t.Fatalf("unexpected clipboard content %#v", clip.written)
	}

	clip.err = errors.New("no clipboard")
	m = applyMsg(t, m, keyRune('y'))
	if !hasToast(m, "Copy failed: no clipboard") {
		t.Fatalf("expected copy failure toast, got %#v", toastTexts(m))
	}
}

func TestModelRoutesAndAccount(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(2), WithProfile(Profile{
		Name:          "John Doe",
		Email:         "john.doe@example.com",
		EmailVerified: true,
	}))
	if !strings.Contains(m.renderScreen(), "Unassigned") {
		t.Fatal("expected dashboard summary cards")
	}
	m = applyMsg(t, m, keyRune('3'))
	if m.route != nav.PathAccount {
		t.Fatalf("expected account route, got %q", m.route)
	}
	out := m.renderScreen()
	if !strings.Contains(out, "john.doe@example.com (verified)") {
		t.Fatal("expected account email in view")
	}
	m = applyMsg(t, m, keyRune('j'))
	if m.cursor != 0 {
		t.Fatal("expected table keys to be inert on the account screen")
	}
	m = applyMsg(t, m, keyRune('2'))
	if m.route != nav.PathSections {
		t.Fatalf("expected sections route, got %q", m.route)
	}
}

func TestModelToastsReplaceAndExpire(t *testing.T) {
	m, _, _ := newTestModel(t, testRecords(1))
	_ = m.pushToast("save:1", "Updating target for Section 01...", toastInfo)
	_ = m.pushToast("save:1", "Target updated to 4", toastSuccess)
	if diff := cmp.Diff([]string{"Target updated to 4"}, toastTexts(m)); diff != "" {
		t.Fatalf("toasts mismatch (-want +got):\n%s", diff)
	}
	for i := range maxToasts + 2 {
		_ = m.pushToast("", fmt.Sprintf("note %d", i), toastInfo)
	}
	if len(m.toasts) != maxToasts {
		t.Fatalf("expected toasts capped at %d, got %d", maxToasts, len(m.toasts))
	}
	m = applyMsg(t, m, toastExpiredMsg{id: m.toasts[0].id})
	if len(m.toasts) != maxToasts-1 {
		t.Fatalf("expected one toast removed, got %d", len(m.toasts))
	}
}

func TestModelCompactVariantDisablesPreview(t *testing.T) {
	repo := &fakePersistence{records: testRecords(2)}
	tbl := app.NewTable(repo, nil, nil, app.TableConfig{Variant: app.VariantCompact})
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	m := loadReadyModel(t, NewModel(tbl))
	if slices.Contains(m.shownColumns(), domain.FieldTags) {
		t.Fatal("expected compact variant to hide tags")
	}
	m = applyMsg(t, m, keyCode(tea.KeyEnter))
	if slices.Contains(m.editorFields(), domain.FieldDescription) {
		t.Fatal("expected compact editor without description")
	}
	m = applyMsg(t, m, keyCtrl('p'))
	if m.editorPreview || m.status != "preview unavailable in compact view" {
		t.Fatalf("expected preview disabled, got %v %q", m.editorPreview, m.status)
	}
}
