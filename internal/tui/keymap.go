package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig holds user overrides for the configurable bindings.
type KeyConfig struct {
	Search    string
	Select    string
	SelectAll string
	Drag      string
	Copy      string
	Refresh   string
	Columns   string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit        key.Binding
	toggleHelp  key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	prevPage    key.Binding
	nextPage    key.Binding
	firstPage   key.Binding
	lastPage    key.Binding
	pageSize    key.Binding
	nextColumn  key.Binding
	prevColumn  key.Binding
	sort        key.Binding
	clearSort   key.Binding
	search      key.Binding
	filter      key.Binding
	clearFilter key.Binding
	columns     key.Binding
	selectRow   key.Binding
	selectAll   key.Binding
	drag        key.Binding
	openEditor  key.Binding
	editTarget  key.Binding
	editLimit   key.Binding
	reviewer    key.Binding
	bulkStatus  key.Binding
	deleteRow   key.Binding
	bulkDelete  key.Binding
	copyRow     key.Binding
	refresh     key.Binding
	routes      key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "row up")),
		moveDown:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "row down")),
		prevPage:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "previous page")),
		nextPage:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next page")),
		firstPage:   key.NewBinding(key.WithKeys("<", "home"), key.WithHelp("<", "first page")),
		lastPage:    key.NewBinding(key.WithKeys(">", "end"), key.WithHelp(">", "last page")),
		pageSize:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "rows per page")),
		nextColumn:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next column")),
		prevColumn:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous column")),
		sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		clearSort:   key.NewBinding(key.WithKeys("S", "shift+s"), key.WithHelp("S", "clear sort")),
		search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		filter:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter column")),
		clearFilter: key.NewBinding(key.WithKeys("F", "shift+f"), key.WithHelp("F", "clear filters")),
		columns:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "columns")),
		selectRow:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select row")),
		selectAll:   key.NewBinding(key.WithKeys("A", "shift+a"), key.WithHelp("A", "select page")),
		drag:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move row")),
		openEditor:  key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "open details")),
		editTarget:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "edit target")),
		editLimit:   key.NewBinding(key.WithKeys("L", "shift+l"), key.WithHelp("L", "edit limit")),
		reviewer:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "assign reviewer")),
		bulkStatus:  key.NewBinding(key.WithKeys("B", "shift+b"), key.WithHelp("B", "status of selected")),
		deleteRow:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete row")),
		bulkDelete:  key.NewBinding(key.WithKeys("D", "shift+d"), key.WithHelp("D", "delete selected")),
		copyRow:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy row")),
		refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		routes:      key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "switch screen")),
	}
}

// applyConfig overrides configurable bindings, keeping defaults for blanks.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.search, cfg.Search, "/", "search")
	configureBinding(&k.selectRow, cfg.Select, "space", "select row")
	configureBinding(&k.selectAll, cfg.SelectAll, "A", "select page")
	configureBinding(&k.drag, cfg.Drag, "m", "move row")
	configureBinding(&k.copyRow, cfg.Copy, "y", "copy row")
	configureBinding(&k.refresh, cfg.Refresh, "r", "refresh")
	configureBinding(&k.columns, cfg.Columns, "c", "columns")
}

// configureBinding replaces the keys and help of one binding.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys resolves one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	if strings.EqualFold(value, "space") || value == " " {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(value) == 1 {
		r, _ := utf8.DecodeRuneInString(value)
		if unicode.IsUpper(r) {
			return []string{value, "shift+" + string(unicode.ToLower(r))}, value
		}
		return []string{value}, value
	}
	return []string{strings.ToLower(value)}, value
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.search, k.filter, k.sort, k.selectRow, k.drag, k.openEditor, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.prevPage, k.nextPage, k.firstPage, k.lastPage, k.pageSize, k.routes},
		{k.nextColumn, k.prevColumn, k.sort, k.clearSort, k.search, k.filter, k.clearFilter, k.columns},
		{k.selectRow, k.selectAll, k.bulkStatus, k.bulkDelete, k.drag, k.copyRow},
		{k.openEditor, k.editTarget, k.editLimit, k.reviewer, k.deleteRow, k.refresh, k.toggleHelp, k.quit},
	}
}
