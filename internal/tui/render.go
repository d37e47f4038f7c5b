package tui

import (
	"fmt"
	"image/color"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
	"github.com/hylla/sectboard/internal/nav"
	"github.com/hylla/sectboard/internal/report"
)

const sidebarWidth = 22

// columnWidths holds the rendered width of each table column.
var columnWidths = map[domain.Field]int{
	domain.FieldHeader:   28,
	domain.FieldType:     18,
	domain.FieldStatus:   13,
	domain.FieldTarget:   7,
	domain.FieldLimit:    7,
	domain.FieldReviewer: 22,
	domain.FieldDueDate:  13,
	domain.FieldPriority: 9,
	domain.FieldTags:     18,
}

// columnTitle returns the display title of one column.
func columnTitle(f domain.Field) string {
	return report.Title(f)
}

// View renders the current screen.
func (m Model) View() tea.View {
	content := "loading..."
	if m.ready {
		content = m.renderScreen()
	}
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderScreen composes the sidebar, body, help line, and overlays.
func (m Model) renderScreen() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	mainWidth := max(20, m.width-sidebarWidth-1)
	var body string
	switch {
	case nav.IsActive(m.route, nav.PathAccount):
		body = m.renderAccount(accent, muted, mainWidth)
	case nav.IsActive(m.route, nav.PathSections):
		body = m.renderTable(accent, muted, dim, mainWidth)
	default:
		body = m.renderSummary(accent, muted, dim) + "\n\n" + m.renderTable(accent, muted, dim, mainWidth)
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		body += "\n" + lipgloss.NewStyle().Foreground(dim).Render(m.status)
	}
	content := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(accent, muted, dim), " ", body)

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	full := content + "\n" + helpLine

	overlay := m.renderModeOverlay(accent, muted, dim, m.width-8)
	if overlay == "" && m.help.ShowAll {
		overlay = m.renderHelpOverlay(accent, muted, dim, m.width-8)
	}
	if overlay != "" {
		height := lipgloss.Height(full)
		if m.height > 0 {
			height = m.height
		}
		full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
	}
	if toasts := m.renderToasts(muted); toasts != "" {
		full = cornerOnContent(full, toasts, max(1, m.width), max(1, lipgloss.Height(full)))
	}
	return full
}

// renderSidebar renders the app title and route list.
func (m Model) renderSidebar(accent, muted, dim color.Color) string {
	active, _ := nav.Active(m.route, nav.Routes())
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Render("sectboard"), ""}
	for i, r := range nav.Routes() {
		label := fmt.Sprintf("%d %s", i+1, r.Title)
		if r.Path == active.Path {
			lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accent).Render("› "+label))
			continue
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("  "+label))
	}
	if m.profile.Name != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(dim).Render(truncate(m.profile.Name, sidebarWidth-2)))
	}
	return lipgloss.NewStyle().
		Width(sidebarWidth).
		BorderRight(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dim).
		Render(strings.Join(lines, "\n"))
}

// renderSummary renders the dashboard status cards.
func (m Model) renderSummary(accent, muted, dim color.Color) string {
	counts := map[domain.Status]int{}
	unassigned, overdue := 0, 0
	now := m.now()
	for _, rec := range m.table.Records() {
		counts[rec.Status]++
		if !rec.Assigned() {
			unassigned++
		}
		if rec.Overdue(now) {
			overdue++
		}
	}
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(18)
	value := lipgloss.NewStyle().Bold(true).Foreground(accent)
	label := lipgloss.NewStyle().Foreground(muted)
	cards := []string{card.Render(label.Render("Sections") + "\n" + value.Render(fmt.Sprint(m.total)))}
	for _, s := range domain.Statuses() {
		cards = append(cards, card.Render(label.Render(string(s))+"\n"+value.Render(fmt.Sprint(counts[s]))))
	}
	cards = append(cards,
		card.Render(label.Render("Unassigned")+"\n"+value.Render(fmt.Sprint(unassigned))),
		card.Render(label.Render("Overdue")+"\n"+value.Render(fmt.Sprint(overdue))),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

// renderTable renders the header, the current page, and the pager lines.
func (m Model) renderTable(accent, muted, dim color.Color, width int) string {
	cols := m.shownColumns()
	headStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	focusStyle := headStyle.Underline(true)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("237"))
	overdueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mutedStyle := lipgloss.NewStyle().Foreground(muted)

	pageIDs := m.result.PageIDs()
	header := []string{"  " + checkbox(m.selection.PageState(pageIDs))}
	for i, f := range cols {
		title := columnTitle(f)
		if m.view.SortKey == f {
			if m.view.SortDirection == app.SortDesc {
				title += " ↓"
			} else {
				title += " ↑"
			}
		}
		if filter, ok := m.view.ColumnFilters[f]; ok && filter.Active() {
			title += fmt.Sprintf(" (%d)", len(filter.Values))
		}
		cell := pad(title, columnWidths[f])
		if i == m.column && m.mode == modeNone {
			header = append(header, focusStyle.Render(cell))
		} else {
			header = append(header, headStyle.Render(cell))
		}
	}
	lines := []string{strings.Join(header, " "), lipgloss.NewStyle().Foreground(dim).Render(strings.Repeat("─", max(0, width)))}

	rows := m.result.PageRows
	if m.mode == modeDrag {
		rows = m.dragPreviewRows()
	}
	if len(rows) == 0 {
		lines = append(lines, mutedStyle.Render("No results."))
	}
	now := m.now()
	for idx, rec := range rows {
		marker := "  "
		if idx == m.cursor {
			marker = "› "
			if m.mode == modeDrag {
				marker = "≡ "
			}
		}
		cells := []string{marker + checkbox(boolCheck(m.selection.IsSelected(rec.ID)))}
		for _, f := range cols {
			text := pad(report.Cell(rec, f, now), columnWidths[f])
			if f == domain.FieldDueDate && rec.Overdue(now) {
				text = overdueStyle.Render(text)
			}
			if m.saves.Pending(rec.ID) && (f == domain.FieldTarget || f == domain.FieldLimit) {
				text = mutedStyle.Render(text)
			}
			cells = append(cells, text)
		}
		line := strings.Join(cells, " ")
		switch {
		case idx == m.cursor:
			line = cursorStyle.Render(line)
		case m.selection.IsSelected(rec.ID):
			line = selectedStyle.Render(line)
		default:
			line = rowStyle.Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "",
		mutedStyle.Render(fmt.Sprintf("%d of %d row(s) selected.", m.selection.CountIn(m.result.FilteredIDs), m.result.TotalFiltered)),
		mutedStyle.Render(fmt.Sprintf("Rows per page %d  •  Page %d of %d  •  %d total",
			m.result.PageSize, m.result.PageIndex+1, max(1, m.result.PageCount), m.total)),
	)
	if m.view.GlobalSearch != "" || m.mode == modeSearch {
		lines = append(lines, m.searchInput.View())
	}
	return strings.Join(lines, "\n")
}

// dragPreviewRows returns the page rows in their would-be order.
func (m Model) dragPreviewRows() []domain.Record {
	byID := make(map[int]domain.Record, len(m.result.PageRows))
	for _, rec := range m.result.PageRows {
		byID[rec.ID] = rec
	}
	out := make([]domain.Record, 0, len(byID))
	for _, id := range m.drag.Preview() {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// renderAccount renders the read-only profile screen.
func (m Model) renderAccount(accent, muted color.Color, width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(accent)
	label := lipgloss.NewStyle().Foreground(muted).Width(16)
	p := m.profile
	rows := [][2]string{
		{"Name", fallback(p.Name, "-")},
		{"Email", fallback(p.Email, "-") + verified(p.EmailVerified)},
		{"Phone", fallback(p.Phone, "-") + verified(p.PhoneVerified)},
		{"Role", fallback(p.Role, "-")},
		{"Avatar", fallback(p.Avatar, "-")},
		{"Two-factor", onOff(p.TwoFactor)},
	}
	lines := []string{title.Render("Account"), ""}
	for _, row := range rows {
		lines = append(lines, label.Render(row[0])+truncate(row[1], max(8, width-18)))
	}
	return strings.Join(lines, "\n")
}

// renderModeOverlay renders the modal box of the active input mode.
func (m Model) renderModeOverlay(accent, muted, dim color.Color, maxWidth int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	errStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	switch m.mode {
	case modeFilter:
		filter := m.view.ColumnFilters[m.filterField]
		lines := []string{titleStyle.Render("Filter " + columnTitle(m.filterField))}
		if len(m.filterFacets) == 0 {
			lines = append(lines, hintStyle.Render("(no values)"))
		}
		for i, facet := range m.filterFacets {
			mark := "[ ]"
			if slices.ContainsFunc(filter.Values, func(v string) bool { return strings.EqualFold(v, facet.Value) }) {
				mark = "[x]"
			}
			line := fmt.Sprintf("%s %s (%d)", mark, fallback(facet.Value, "(empty)"), facet.Count)
			lines = append(lines, pickLine(line, i == m.filterIndex))
		}
		lines = append(lines, hintStyle.Render("space toggle • x clear • esc close"))
		return box.Width(clamp(maxWidth, 30, 56)).Render(strings.Join(lines, "\n"))

	case modeColumns:
		lines := []string{titleStyle.Render("Columns")}
		for i, f := range m.hideableColumns() {
			mark := "[ ]"
			if m.view.IsVisible(f) {
				mark = "[x]"
			}
			lines = append(lines, pickLine(mark+" "+columnTitle(f), i == m.columnIndex))
		}
		lines = append(lines, hintStyle.Render("space toggle • esc close"))
		return box.Width(clamp(maxWidth, 30, 48)).Render(strings.Join(lines, "\n"))

	case modeInlineEdit:
		rec, _ := m.table.Get(m.inlineID)
		lines := []string{
			titleStyle.Render("Edit " + strings.ToLower(columnTitle(m.inlineField))),
			hintStyle.Render(truncate(rec.Header, 40)),
			m.inlineInput.View(),
			hintStyle.Render("enter save • esc cancel"),
		}
		return box.Width(clamp(maxWidth, 30, 56)).Render(strings.Join(lines, "\n"))

	case modePicker:
		title := "Assign reviewer"
		if m.picker == pickBulkStatus {
			title = fmt.Sprintf("Status for %d selected row(s)", m.selection.Count())
		}
		lines := []string{titleStyle.Render(title)}
		for i, opt := range m.pickerOptions {
			lines = append(lines, pickLine(opt, i == m.pickerIndex))
		}
		lines = append(lines, hintStyle.Render("enter choose • esc cancel"))
		return box.Width(clamp(maxWidth, 30, 48)).Render(strings.Join(lines, "\n"))

	case modeConfirmDelete:
		lines := []string{
			errStyle.Render("Delete " + m.deleteLabel + "?"),
			hintStyle.Render("y confirm • n cancel"),
		}
		return box.BorderForeground(lipgloss.Color("203")).Width(clamp(maxWidth, 30, 56)).Render(strings.Join(lines, "\n"))

	case modeEditor:
		return m.renderEditor(box, titleStyle, hintStyle, errStyle, maxWidth)
	}
	return ""
}

// renderEditor renders the detail editor form and its description preview.
func (m Model) renderEditor(box, titleStyle, hintStyle, errStyle lipgloss.Style, maxWidth int) string {
	ed, ok := m.editors.Lookup(m.editorID)
	if !ok {
		return ""
	}
	width := clamp(maxWidth, 40, 96)
	lines := []string{titleStyle.Render("Section " + fmt.Sprint(ed.ID()))}
	dirty := ed.Dirty()
	for i, f := range m.editorFields() {
		if i >= len(m.editorInputs) {
			break
		}
		line := m.editorInputs[i].View()
		if slices.Contains(dirty, f) {
			line += hintStyle.Render(" •")
		}
		lines = append(lines, line)
	}
	if m.editorErr != "" {
		lines = append(lines, errStyle.Render(m.editorErr))
	}
	if ed.State() == app.EditorSaving {
		lines = append(lines, hintStyle.Render("saving..."))
	}
	if m.editorPreview && m.table.Variant() == app.VariantFull {
		fields := m.editorFields()
		if idx := slices.Index(fields, domain.FieldDescription); idx >= 0 && idx < len(m.editorInputs) {
			if preview := m.markdown.render(m.editorInputs[idx].Value(), width-4); preview != "" {
				lines = append(lines, "", preview)
			}
		}
	}
	lines = append(lines, hintStyle.Render("tab next • ←/→ cycle • ctrl+s save • ctrl+w keep draft • ctrl+p preview • esc discard"))
	return box.Width(width).Render(strings.Join(lines, "\n"))
}

// renderHelpOverlay renders the expanded key reference.
func (m Model) renderHelpOverlay(accent, muted, dim color.Color, maxWidth int) string {
	width := clamp(maxWidth, 56, 110)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("sectboard help"),
		"",
		hb.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(muted).Render("press ? or esc to close"),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

// renderToasts renders the notification stack, newest last.
func (m Model) renderToasts(muted color.Color) string {
	if len(m.toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(40)
		switch t.level {
		case toastSuccess:
			style = style.BorderForeground(lipgloss.Color("42"))
		case toastError:
			style = style.BorderForeground(lipgloss.Color("203"))
		default:
			style = style.BorderForeground(muted)
		}
		lines = append(lines, style.Render(truncate(t.text, 36)))
	}
	return lipgloss.JoinVertical(lipgloss.Right, lines...)
}

func pickLine(text string, active bool) string {
	if active {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true).Render("› " + text)
	}
	return "  " + text
}

func checkbox(state app.CheckState) string {
	switch state {
	case app.CheckAll:
		return "[x]"
	case app.CheckSome:
		return "[-]"
	default:
		return "[ ]"
	}
}

func boolCheck(v bool) app.CheckState {
	if v {
		return app.CheckAll
	}
	return app.CheckNone
}

func pad(s string, width int) string {
	s = truncate(s, width)
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func verified(ok bool) string {
	if ok {
		return " (verified)"
	}
	return ""
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

// fitLines pads or trims content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	return placeOnContent(base, overlay, width, height, lipgloss.Center, lipgloss.Center)
}

// cornerOnContent pins overlay to the bottom-right corner of base.
func cornerOnContent(base, overlay string, width, height int) string {
	return placeOnContent(base, overlay, width, height, lipgloss.Right, lipgloss.Bottom)
}

func placeOnContent(base, overlay string, width, height int, hPos, vPos lipgloss.Position) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(lipgloss.Place(width, height, hPos, vPos, overlay)).X(0).Y(0).Z(10))
	return canvas.Render()
}
