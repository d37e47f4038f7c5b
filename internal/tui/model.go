package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
	"github.com/hylla/sectboard/internal/nav"
)

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeSearch
	modeFilter
	modeColumns
	modeInlineEdit
	modeEditor
	modePicker
	modeConfirmDelete
	modeDrag
)

// pickerKind selects what a picker choice applies to.
type pickerKind int

const (
	pickReviewer pickerKind = iota
	pickBulkStatus
)

// toastLevel styles one notification.
type toastLevel int

const (
	toastInfo toastLevel = iota
	toastSuccess
	toastError
)

const (
	toastTTL  = 4 * time.Second
	maxToasts = 3
)

// filterableFields lists columns with a facet filter menu.
var filterableFields = []domain.Field{
	domain.FieldType,
	domain.FieldStatus,
	domain.FieldTarget,
	domain.FieldLimit,
	domain.FieldReviewer,
	domain.FieldPriority,
	domain.FieldTags,
}

// toast is one transient notification. key groups the loading and result
// toasts of one save so the result replaces the loading text.
type toast struct {
	id    int
	key   string
	text  string
	level toastLevel
}

// Model is the sections table screen.
type Model struct {
	table *app.Table

	ready  bool
	width  int
	height int
	status string

	help help.Model
	keys keyMap

	route     string
	view      app.ViewState
	result    app.ViewResult
	total     int
	cursor    int
	column    int
	pageSizes []int

	mode        inputMode
	searchInput textinput.Model
	inlineInput textinput.Model
	inlineField domain.Field
	inlineID    int

	filterField  domain.Field
	filterIndex  int
	filterFacets []app.FacetValue
	columnIndex  int

	picker         pickerKind
	pickerOptions  []string
	pickerIndex    int
	pickerRecordID int

	pendingDelete []int
	deleteLabel   string
	bulkDelete    bool

	selection *app.Selection
	drag      *app.DragController
	editors   *app.Editors
	saves     *app.SaveTracker

	editorID      int
	editorInputs  []textinput.Model
	editorFocus   int
	editorPreview bool
	editorErr     string
	markdown      *markdownRenderer

	toasts    []toast
	nextToast int

	reviewers   []string
	inlineDelay time.Duration
	detailDelay time.Duration
	profile     Profile
	now         func() time.Time
	copy        func(string) error
	changes     <-chan struct{}
	log         Logger
}

// reloadedMsg reports the outcome of reloading records from persistence.
type reloadedMsg struct {
	status string
	err    error
}

// externalChangeMsg reports that the backing file changed on disk.
type externalChangeMsg struct {
	ok bool
}

// inlineSaveMsg fires when a delayed inline save is due.
type inlineSaveMsg struct {
	handle app.SaveHandle
}

// detailSaveMsg fires when a delayed detail-editor save is due.
type detailSaveMsg struct {
	handle app.SaveHandle
}

// toastExpiredMsg removes one notification.
type toastExpiredMsg struct {
	id int
}

// nopLogger discards events.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// NewModel constructs the table screen over a loaded table.
func NewModel(table *app.Table, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	searchInput := newModalInput("search: ", "header, type, status, reviewer, tags", "", 120)
	m := Model{
		table:       table,
		status:      "ready",
		help:        h,
		keys:        newKeyMap(),
		route:       nav.PathDashboard,
		view:        app.NewViewState(),
		pageSizes:   slices.Clone(app.PageSizeOptions),
		searchInput: searchInput,
		editors:     app.NewEditors(table),
		saves:       app.NewSaveTracker(uuid.NewString, nil),
		markdown:    &markdownRenderer{},
		reviewers:   []string{"Eddie Lake", "Jamik Tashpulatov", "Emily Whalen"},
		inlineDelay: time.Second,
		detailDelay: 1500 * time.Millisecond,
		now:         time.Now,
		copy:        clipboard.WriteAll,
		log:         nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.selection = app.NewSelection(table)
	logger := m.log
	m.drag = app.NewDragController(table, func(order []int) {
		logger.Debug("rows reordered", "order", order)
	})
	m.editorPreview = table.Variant() == app.VariantFull
	m.refresh()
	return m
}

// Init starts listening for external changes when a watcher is configured.
func (m Model) Init() tea.Cmd {
	return m.waitForChanges()
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case reloadedMsg:
		if msg.err != nil {
			m.status = "refresh failed"
			return m, m.pushToast("refresh", "Failed to refresh data: "+msg.err.Error(), toastError)
		}
		m.refresh()
		m.status = "ready"
		return m, m.pushToast("refresh", msg.status, toastSuccess)

	case externalChangeMsg:
		if !msg.ok {
			return m, nil
		}
		m.log.Info("external change detected; reloading")
		return m, tea.Batch(m.reloadCmd("Data refreshed from disk"), m.waitForChanges())

	case inlineSaveMsg:
		return m.finishInlineSave(msg.handle)

	case detailSaveMsg:
		return m.finishDetailSave(msg.handle)

	case toastExpiredMsg:
		m.toasts = slices.DeleteFunc(m.toasts, func(t toast) bool { return t.id == msg.id })
		return m, nil

	case tea.KeyPressMsg:
		switch m.mode {
		case modeNone:
			return m.handleNormalModeKey(msg)
		case modeEditor:
			return m.handleEditorKey(msg)
		default:
			return m.handleInputModeKey(msg)
		}

	default:
		return m, nil
	}
}

// refresh recomputes the visible page after any state or data change.
func (m *Model) refresh() {
	m.total = m.table.Len()
	m.result = m.table.View(m.view)
	m.view.PageIndex = m.result.PageIndex
	m.cursor = clamp(m.cursor, 0, len(m.result.PageRows)-1)
	m.column = clamp(m.column, 0, len(m.shownColumns())-1)
}

// setView replaces the view state and recomputes the page.
func (m *Model) setView(vs app.ViewState) {
	m.view = vs
	m.refresh()
}

// shownColumns lists the data columns rendered for the variant and view state.
func (m Model) shownColumns() []domain.Field {
	out := make([]domain.Field, 0, len(domain.AllFields()))
	for _, f := range m.table.Variant().Columns() {
		if f == domain.FieldID || f == domain.FieldDescription {
			continue
		}
		if m.view.IsVisible(f) {
			out = append(out, f)
		}
	}
	return out
}

// focusedColumn returns the column that sort and filter keys act on.
func (m Model) focusedColumn() domain.Field {
	cols := m.shownColumns()
	if len(cols) == 0 {
		return domain.FieldHeader
	}
	return cols[clamp(m.column, 0, len(cols)-1)]
}

// currentRecord returns the row under the cursor.
func (m Model) currentRecord() (domain.Record, bool) {
	if len(m.result.PageRows) == 0 {
		return domain.Record{}, false
	}
	return m.result.PageRows[clamp(m.cursor, 0, len(m.result.PageRows)-1)], true
}

// reloadCmd replaces the table content with the collaborator's records.
func (m Model) reloadCmd(status string) tea.Cmd {
	table := m.table
	return func() tea.Msg {
		return reloadedMsg{status: status, err: table.Load(context.Background())}
	}
}

// waitForChanges blocks until the watcher signals or closes.
func (m Model) waitForChanges() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		_, ok := <-changes
		return externalChangeMsg{ok: ok}
	}
}

// pushToast shows a notification, replacing any toast with the same key.
func (m *Model) pushToast(key, text string, level toastLevel) tea.Cmd {
	m.nextToast++
	t := toast{id: m.nextToast, key: key, text: text, level: level}
	if idx := slices.IndexFunc(m.toasts, func(existing toast) bool { return key != "" && existing.key == key }); idx >= 0 {
		m.toasts[idx] = t
	} else {
		m.toasts = append(m.toasts, t)
	}
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	id := t.id
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

// handleNormalModeKey handles table navigation and row actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case msg.String() == "esc":
		switch {
		case m.help.ShowAll:
			m.help.ShowAll = false
		case m.view.GlobalSearch != "":
			m.setView(m.view.WithSearch(""))
			m.status = "search cleared"
		case m.selection.Count() > 0:
			count := m.selection.Count()
			m.selection.Clear()
			m.status = fmt.Sprintf("cleared %d selected row(s)", count)
		}
		return m, nil
	case key.Matches(msg, m.keys.routes):
		idx, err := strconv.Atoi(msg.String())
		routes := nav.Routes()
		if err == nil && idx >= 1 && idx <= len(routes) {
			m.route = routes[idx-1].Path
			m.status = routes[idx-1].Title
		}
		return m, nil
	}

	if nav.IsActive(m.route, nav.PathAccount) {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.moveUp):
		m.cursor = max(0, m.cursor-1)
	case key.Matches(msg, m.keys.moveDown):
		m.cursor = clamp(m.cursor+1, 0, len(m.result.PageRows)-1)
	case key.Matches(msg, m.keys.prevPage):
		m.setView(m.view.WithPage(m.result.PageIndex - 1))
	case key.Matches(msg, m.keys.nextPage):
		if m.result.PageIndex+1 < m.result.PageCount {
			m.setView(m.view.WithPage(m.result.PageIndex + 1))
		}
	case key.Matches(msg, m.keys.firstPage):
		m.setView(m.view.WithPage(0))
	case key.Matches(msg, m.keys.lastPage):
		m.setView(m.view.WithPage(max(m.result.PageCount-1, 0)))
	case key.Matches(msg, m.keys.pageSize):
		next := m.pageSizes[0]
		if idx := slices.Index(m.pageSizes, m.result.PageSize); idx >= 0 {
			next = m.pageSizes[(idx+1)%len(m.pageSizes)]
		}
		m.setView(m.view.WithPageSize(next))
		m.status = fmt.Sprintf("%d rows per page", next)
	case key.Matches(msg, m.keys.nextColumn):
		m.column = wrapIndex(m.column, 1, len(m.shownColumns()))
	case key.Matches(msg, m.keys.prevColumn):
		m.column = wrapIndex(m.column, -1, len(m.shownColumns()))
	case key.Matches(msg, m.keys.sort):
		field := m.focusedColumn()
		m.setView(m.view.ToggleSort(field))
		m.status = fmt.Sprintf("sorted by %s %s", columnTitle(field), m.view.SortDirection)
	case key.Matches(msg, m.keys.clearSort):
		m.setView(m.view.ClearSort())
		m.status = "sort cleared"
	case key.Matches(msg, m.keys.search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.view.GlobalSearch)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.filter):
		return m.startFilter(m.focusedColumn())
	case key.Matches(msg, m.keys.clearFilter):
		m.setView(m.view.ClearFilters())
		m.status = "filters cleared"
	case key.Matches(msg, m.keys.columns):
		m.mode = modeColumns
		m.columnIndex = 0
	case key.Matches(msg, m.keys.selectRow):
		rec, ok := m.currentRecord()
		if !ok {
			return m, nil
		}
		if m.selection.Toggle(rec.ID) {
			m.status = fmt.Sprintf("selected %q", truncate(rec.Header, 28))
		} else {
			m.status = fmt.Sprintf("unselected %q", truncate(rec.Header, 28))
		}
	case key.Matches(msg, m.keys.selectAll):
		m.selection.ToggleAll(m.result.PageIDs())
	case key.Matches(msg, m.keys.drag):
		return m.startDrag()
	case key.Matches(msg, m.keys.openEditor):
		return m.openEditor()
	case key.Matches(msg, m.keys.editTarget):
		return m.startInlineEdit(domain.FieldTarget)
	case key.Matches(msg, m.keys.editLimit):
		return m.startInlineEdit(domain.FieldLimit)
	case key.Matches(msg, m.keys.reviewer):
		return m.startReviewerPicker()
	case key.Matches(msg, m.keys.bulkStatus):
		if m.selection.Count() == 0 {
			m.status = "no rows selected"
			return m, nil
		}
		m.mode = modePicker
		m.picker = pickBulkStatus
		m.pickerOptions = make([]string, 0, len(domain.Statuses()))
		for _, s := range domain.Statuses() {
			m.pickerOptions = append(m.pickerOptions, string(s))
		}
		m.pickerIndex = 0
	case key.Matches(msg, m.keys.deleteRow):
		rec, ok := m.currentRecord()
		if !ok {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingDelete = []int{rec.ID}
		m.deleteLabel = rec.Header
		m.bulkDelete = false
	case key.Matches(msg, m.keys.bulkDelete):
		ids := m.selection.SelectedIDs()
		if len(ids) == 0 {
			m.status = "no rows selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingDelete = ids
		m.deleteLabel = fmt.Sprintf("%d selected row(s)", len(ids))
		m.bulkDelete = true
	case key.Matches(msg, m.keys.copyRow):
		return m.copyCurrentRow()
	case key.Matches(msg, m.keys.refresh):
		m.status = "refreshing..."
		return m, m.reloadCmd("Data refreshed successfully")
	}
	return m, nil
}

// handleInputModeKey handles keys while a menu, prompt, or drag is active.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		switch msg.String() {
		case "enter":
			m.mode = modeNone
			m.searchInput.Blur()
			m.status = fmt.Sprintf("%d match(es)", m.result.TotalFiltered)
			return m, nil
		case "esc":
			m.mode = modeNone
			m.searchInput.Blur()
			m.searchInput.SetValue("")
			m.setView(m.view.WithSearch(""))
			m.status = "search cleared"
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.setView(m.view.WithSearch(m.searchInput.Value()))
		return m, cmd

	case modeFilter:
		switch {
		case msg.String() == "esc" || key.Matches(msg, m.keys.filter):
			m.mode = modeNone
		case key.Matches(msg, m.keys.moveUp):
			m.filterIndex = max(0, m.filterIndex-1)
		case key.Matches(msg, m.keys.moveDown):
			m.filterIndex = clamp(m.filterIndex+1, 0, len(m.filterFacets)-1)
		case key.Matches(msg, m.keys.selectRow) || msg.String() == "enter":
			if len(m.filterFacets) == 0 {
				return m, nil
			}
			value := m.filterFacets[clamp(m.filterIndex, 0, len(m.filterFacets)-1)].Value
			m.setView(m.view.ToggleFilterValue(m.filterField, value))
			m.status = fmt.Sprintf("%d filter(s) active", m.view.ActiveFilterCount())
		case msg.String() == "x":
			m.setView(m.view.WithFilter(m.filterField))
			m.status = columnTitle(m.filterField) + " filter cleared"
		}
		return m, nil

	case modeColumns:
		hideable := m.hideableColumns()
		switch {
		case msg.String() == "esc" || key.Matches(msg, m.keys.columns):
			m.mode = modeNone
		case key.Matches(msg, m.keys.moveUp):
			m.columnIndex = max(0, m.columnIndex-1)
		case key.Matches(msg, m.keys.moveDown):
			m.columnIndex = clamp(m.columnIndex+1, 0, len(hideable)-1)
		case key.Matches(msg, m.keys.selectRow) || msg.String() == "enter":
			if len(hideable) == 0 {
				return m, nil
			}
			m.setView(m.view.ToggleColumn(hideable[clamp(m.columnIndex, 0, len(hideable)-1)]))
		}
		return m, nil

	case modeInlineEdit:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.inlineInput.Blur()
			m.status = "edit cancelled"
			return m, nil
		case "enter", "tab":
			return m.commitInlineEdit()
		}
		var cmd tea.Cmd
		m.inlineInput, cmd = m.inlineInput.Update(msg)
		return m, cmd

	case modePicker:
		switch {
		case msg.String() == "esc":
			m.mode = modeNone
		case key.Matches(msg, m.keys.moveUp):
			m.pickerIndex = max(0, m.pickerIndex-1)
		case key.Matches(msg, m.keys.moveDown):
			m.pickerIndex = clamp(m.pickerIndex+1, 0, len(m.pickerOptions)-1)
		case msg.String() == "enter":
			return m.applyPicker()
		}
		return m, nil

	case modeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			return m.confirmDelete()
		case "n", "esc":
			m.mode = modeNone
			m.pendingDelete = nil
			m.status = "delete cancelled"
		}
		return m, nil

	case modeDrag:
		switch {
		case key.Matches(msg, m.keys.moveUp):
			m.drag.Nudge(-1)
			m.cursor = m.drag.Over()
		case key.Matches(msg, m.keys.moveDown):
			m.drag.Nudge(1)
			m.cursor = m.drag.Over()
		case msg.String() == "enter" || key.Matches(msg, m.keys.drag):
			return m.commitDrag()
		case msg.String() == "esc":
			m.drag.Cancel()
			m.mode = modeNone
			m.refresh()
			m.status = "move cancelled"
		}
		return m, nil
	}
	return m, nil
}

// hideableColumns lists the variant columns the column menu can toggle.
func (m Model) hideableColumns() []domain.Field {
	out := []domain.Field{}
	for _, f := range m.table.Variant().Columns() {
		if f == domain.FieldHeader || f == domain.FieldID || f == domain.FieldDescription {
			continue
		}
		out = append(out, f)
	}
	return out
}

// startFilter opens the facet menu of one column.
func (m Model) startFilter(field domain.Field) (tea.Model, tea.Cmd) {
	if !slices.Contains(filterableFields, field) {
		m.status = columnTitle(field) + " cannot be filtered"
		return m, nil
	}
	m.mode = modeFilter
	m.filterField = field
	m.filterFacets = m.table.Facets(field)
	m.filterIndex = 0
	return m, nil
}

// startDrag picks up the row under the cursor.
func (m Model) startDrag() (tea.Model, tea.Cmd) {
	if err := m.drag.Begin(m.result.PageIDs(), m.cursor); err != nil {
		m.status = "nothing to move"
		return m, nil
	}
	m.mode = modeDrag
	m.status = "moving row: j/k to choose, enter to drop, esc to cancel"
	return m, nil
}

// commitDrag drops the dragged row at the hovered position.
func (m Model) commitDrag() (tea.Model, tea.Cmd) {
	dragged, _ := m.drag.DraggedID()
	committed, err := m.drag.Commit(context.Background())
	m.mode = modeNone
	m.refresh()
	if err != nil {
		m.status = "move failed"
		return m, m.pushToast("", "Failed to reorder rows: "+err.Error(), toastError)
	}
	if !committed {
		m.status = "move cancelled"
		return m, nil
	}
	if idx := slices.Index(m.result.PageIDs(), dragged); idx >= 0 {
		m.cursor = idx
	}
	m.status = "ready"
	return m, m.pushToast("", "Rows reordered successfully", toastSuccess)
}

// startInlineEdit opens the inline prompt for target or limit.
func (m Model) startInlineEdit(field domain.Field) (tea.Model, tea.Cmd) {
	rec, ok := m.currentRecord()
	if !ok {
		return m, nil
	}
	m.mode = modeInlineEdit
	m.inlineField = field
	m.inlineID = rec.ID
	m.inlineInput = newModalInput(columnTitle(field)+": ", "", rec.Value(field), 32)
	m.inlineInput.CursorEnd()
	return m, m.inlineInput.Focus()
}

// commitInlineEdit starts a delayed save for the inline prompt value.
func (m Model) commitInlineEdit() (tea.Model, tea.Cmd) {
	edit, err := domain.ParseEdit(m.inlineField, m.inlineInput.Value())
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	rec, err := m.table.Get(m.inlineID)
	if err != nil {
		m.mode = modeNone
		m.status = err.Error()
		return m, nil
	}
	m.mode = modeNone
	m.inlineInput.Blur()

	handle, superseded := m.saves.Begin(rec.ID, edit)
	m.log.Debug("inline save started", "id", rec.ID, "field", m.inlineField, "superseded", superseded)
	label := strings.ToLower(columnTitle(m.inlineField))
	loading := m.pushToast(saveToastKey(rec.ID), fmt.Sprintf("Updating %s for %s...", label, rec.Header), toastInfo)
	return m, tea.Batch(loading, tea.Tick(m.inlineDelay, func(time.Time) tea.Msg {
		return inlineSaveMsg{handle: handle}
	}))
}

// finishInlineSave applies a due inline save unless it was superseded.
func (m Model) finishInlineSave(h app.SaveHandle) (tea.Model, tea.Cmd) {
	if !m.saves.Finish(h) {
		m.log.Debug("inline save superseded", "id", h.RecordID, "token", h.Token)
		return m, nil
	}
	fields := domain.FieldsOf(h.Edits)
	label := "row"
	if len(fields) == 1 {
		label = strings.ToLower(columnTitle(fields[0]))
	}
	rec, err := m.table.UpdateFields(context.Background(), h.RecordID, h.Edits...)
	m.refresh()
	if err != nil {
		m.log.Warn("inline save failed", "id", h.RecordID, "err", err)
		return m, m.pushToast(saveToastKey(h.RecordID), fmt.Sprintf("Failed to update %s", label), toastError)
	}
	m.log.Info("inline save committed", "id", rec.ID, "fields", fields)
	text := "Row updated"
	if len(fields) == 1 {
		text = fmt.Sprintf("%s updated to %s", columnTitle(fields[0]), rec.Value(fields[0]))
	}
	return m, m.pushToast(saveToastKey(rec.ID), text, toastSuccess)
}

func saveToastKey(id int) string {
	return "save:" + strconv.Itoa(id)
}

// startReviewerPicker opens the reviewer list for an unassigned row.
func (m Model) startReviewerPicker() (tea.Model, tea.Cmd) {
	rec, ok := m.currentRecord()
	if !ok {
		return m, nil
	}
	if rec.Assigned() {
		m.status = "assigned reviewer: " + rec.Reviewer
		return m, nil
	}
	if len(m.reviewers) == 0 {
		m.status = "no reviewers configured"
		return m, nil
	}
	m.mode = modePicker
	m.picker = pickReviewer
	m.pickerOptions = slices.Clone(m.reviewers)
	m.pickerIndex = 0
	m.pickerRecordID = rec.ID
	return m, nil
}

// applyPicker commits the highlighted picker choice.
func (m Model) applyPicker() (tea.Model, tea.Cmd) {
	m.mode = modeNone
	if len(m.pickerOptions) == 0 {
		return m, nil
	}
	choice := m.pickerOptions[clamp(m.pickerIndex, 0, len(m.pickerOptions)-1)]
	ctx := context.Background()
	switch m.picker {
	case pickReviewer:
		rec, err := m.table.UpdateField(ctx, m.pickerRecordID, domain.ReviewerEdit{Value: choice})
		m.refresh()
		if err != nil {
			return m, m.pushToast("", "Failed to assign reviewer: "+err.Error(), toastError)
		}
		return m, m.pushToast("", fmt.Sprintf("%s assigned to %s", rec.Reviewer, rec.Header), toastSuccess)
	case pickBulkStatus:
		status, err := domain.ParseStatus(choice)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		updated, err := m.selection.BulkEdit(ctx, domain.StatusEdit{Value: status})
		m.refresh()
		if err != nil {
			return m, m.pushToast("", "Failed to update rows: "+err.Error(), toastError)
		}
		return m, m.pushToast("", fmt.Sprintf("%d row(s) marked %s", len(updated), status), toastSuccess)
	}
	return m, nil
}

// confirmDelete removes the rows awaiting confirmation.
func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	m.mode = modeNone
	ids, label, bulk := m.pendingDelete, m.deleteLabel, m.bulkDelete
	m.pendingDelete = nil
	ctx := context.Background()

	var (
		removed []int
		err     error
	)
	if bulk {
		removed, err = m.selection.BulkDelete(ctx)
	} else {
		removed, err = m.table.Remove(ctx, ids...)
	}
	for _, id := range removed {
		m.saves.Cancel(id)
		if ed, ok := m.editors.Lookup(id); ok {
			ed.Cancel()
		}
	}
	m.refresh()
	if err != nil {
		return m, m.pushToast("", "Failed to delete: "+err.Error(), toastError)
	}
	if bulk {
		return m, m.pushToast("", fmt.Sprintf("Deleted %d row(s)", len(removed)), toastSuccess)
	}
	return m, m.pushToast("", label+" deleted successfully", toastSuccess)
}

// copyCurrentRow copies the row under the cursor as tab-separated text.
func (m Model) copyCurrentRow() (tea.Model, tea.Cmd) {
	rec, ok := m.currentRecord()
	if !ok {
		return m, nil
	}
	if err := m.copy(rowText(rec)); err != nil {
		return m, m.pushToast("", "Copy failed: "+err.Error(), toastError)
	}
	return m, m.pushToast("", "Copied "+rec.Header, toastInfo)
}

// rowText renders one record as a tab-separated line.
func rowText(rec domain.Record) string {
	cells := make([]string, 0, len(domain.AllFields()))
	for _, f := range domain.AllFields() {
		if f == domain.FieldDescription {
			continue
		}
		cells = append(cells, rec.Value(f))
	}
	return strings.Join(cells, "\t")
}

// isValidationError reports whether err is a field-scoped validation failure.
func isValidationError(err error) (*domain.ValidationError, bool) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// newModalInput builds one text input for prompts and forms.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// wrapIndex moves current by delta, wrapping within total.
func wrapIndex(current, delta, total int) int {
	if total <= 0 {
		return 0
	}
	return ((current+delta)%total + total) % total
}

// clamp clamps v into [minV, maxV], preferring minV for empty ranges.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
