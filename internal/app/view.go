package app

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hylla/sectboard/internal/domain"
)

// DefaultPageSize is the page size of a fresh view.
const DefaultPageSize = 10

// MaxPageSize bounds page sizes accepted from outside callers.
const MaxPageSize = 1000

// PageSizeOptions lists the page sizes offered by the pager.
var PageSizeOptions = []int{10, 20, 30, 40, 50}

// SortDirection orders a sorted column.
type SortDirection string

// SortDirection values.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection resolves "asc"/"desc", defaulting to ascending.
func ParseSortDirection(raw string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc", "ascending":
		return SortAsc, nil
	case "desc", "descending":
		return SortDesc, nil
	default:
		return "", &domain.ValidationError{Field: "sort_direction", Value: raw, Reason: "must be asc or desc"}
	}
}

// ColumnFilter keeps records whose column value is any of Values.
// Matching ignores case. An empty filter keeps everything.
type ColumnFilter struct {
	Values []string
}

// Active reports whether the filter excludes anything.
func (f ColumnFilter) Active() bool {
	return len(f.Values) > 0
}

func (f ColumnFilter) matches(field domain.Field, r domain.Record) bool {
	if field == domain.FieldTags {
		for _, tag := range r.Tags {
			if f.contains(tag) {
				return true
			}
		}
		return false
	}
	return f.contains(r.Value(field))
}

func (f ColumnFilter) contains(v string) bool {
	return slices.ContainsFunc(f.Values, func(want string) bool {
		return strings.EqualFold(strings.TrimSpace(want), v)
	})
}

// ViewState is the transient sort, filter, search, and paging state of a table.
// Methods return modified copies; the receiver is never changed.
type ViewState struct {
	SortKey        domain.Field
	SortDirection  SortDirection
	ColumnFilters  map[domain.Field]ColumnFilter
	GlobalSearch   string
	PageIndex      int
	PageSize       int
	VisibleColumns []domain.Field
}

// NewViewState returns the mount-time defaults.
func NewViewState() ViewState {
	return ViewState{
		SortDirection:  SortAsc,
		PageSize:       DefaultPageSize,
		VisibleColumns: domain.AllFields(),
	}
}

func (v ViewState) clone() ViewState {
	out := v
	out.ColumnFilters = maps.Clone(v.ColumnFilters)
	out.VisibleColumns = slices.Clone(v.VisibleColumns)
	return out
}

// ToggleSort sorts by field ascending, or flips the direction when field is
// already the sort key.
func (v ViewState) ToggleSort(field domain.Field) ViewState {
	out := v.clone()
	if out.SortKey == field {
		if out.SortDirection == SortDesc {
			out.SortDirection = SortAsc
		} else {
			out.SortDirection = SortDesc
		}
		return out
	}
	out.SortKey = field
	out.SortDirection = SortAsc
	return out
}

// ClearSort restores canonical order.
func (v ViewState) ClearSort() ViewState {
	out := v.clone()
	out.SortKey = ""
	out.SortDirection = SortAsc
	return out
}

// WithFilter replaces the filter on field. No values removes the filter.
// The pager returns to the first page.
func (v ViewState) WithFilter(field domain.Field, values ...string) ViewState {
	out := v.clone()
	if out.ColumnFilters == nil {
		out.ColumnFilters = map[domain.Field]ColumnFilter{}
	}
	if len(values) == 0 {
		delete(out.ColumnFilters, field)
	} else {
		out.ColumnFilters[field] = ColumnFilter{Values: slices.Clone(values)}
	}
	out.PageIndex = 0
	return out
}

// ToggleFilterValue adds or removes one value from the filter on field.
func (v ViewState) ToggleFilterValue(field domain.Field, value string) ViewState {
	values := slices.Clone(v.ColumnFilters[field].Values)
	if idx := slices.IndexFunc(values, func(s string) bool { return strings.EqualFold(s, value) }); idx >= 0 {
		values = slices.Delete(values, idx, idx+1)
	} else {
		values = append(values, value)
	}
	return v.WithFilter(field, values...)
}

// ClearFilters drops every column filter and the global search.
func (v ViewState) ClearFilters() ViewState {
	out := v.clone()
	out.ColumnFilters = nil
	out.GlobalSearch = ""
	out.PageIndex = 0
	return out
}

// ActiveFilterCount counts column filters that exclude records.
func (v ViewState) ActiveFilterCount() int {
	n := 0
	for _, f := range v.ColumnFilters {
		if f.Active() {
			n++
		}
	}
	return n
}

// WithSearch sets the global search text and returns to the first page.
func (v ViewState) WithSearch(text string) ViewState {
	out := v.clone()
	out.GlobalSearch = text
	out.PageIndex = 0
	return out
}

// WithPage moves to page index. ComputeView clamps out-of-range values.
func (v ViewState) WithPage(index int) ViewState {
	out := v.clone()
	out.PageIndex = max(index, 0)
	return out
}

// WithPageSize changes the page size keeping the first visible row on screen.
func (v ViewState) WithPageSize(size int) ViewState {
	if size <= 0 {
		size = DefaultPageSize
	}
	out := v.clone()
	top := math.MaxInt
	if cur := out.pageSize(); out.PageIndex <= math.MaxInt/cur {
		top = out.PageIndex * cur
	}
	out.PageSize = size
	out.PageIndex = top / size
	return out
}

// ToggleColumn shows or hides a column. The header column is always shown.
func (v ViewState) ToggleColumn(field domain.Field) ViewState {
	out := v.clone()
	if field == domain.FieldHeader {
		return out
	}
	if out.VisibleColumns == nil {
		out.VisibleColumns = domain.AllFields()
	}
	if idx := slices.Index(out.VisibleColumns, field); idx >= 0 {
		out.VisibleColumns = slices.Delete(out.VisibleColumns, idx, idx+1)
		return out
	}
	visible := make([]domain.Field, 0, len(out.VisibleColumns)+1)
	for _, f := range domain.AllFields() {
		if f == field || slices.Contains(out.VisibleColumns, f) {
			visible = append(visible, f)
		}
	}
	out.VisibleColumns = visible
	return out
}

// IsVisible reports whether a column is shown.
func (v ViewState) IsVisible(field domain.Field) bool {
	return v.VisibleColumns == nil || slices.Contains(v.VisibleColumns, field)
}

func (v ViewState) pageSize() int {
	if v.PageSize <= 0 {
		return DefaultPageSize
	}
	return v.PageSize
}

// ViewResult is one computed page of the table.
type ViewResult struct {
	PageRows      []domain.Record
	FilteredIDs   []int
	TotalFiltered int
	PageCount     int
	PageIndex     int
	PageSize      int
}

// PageIDs returns the ids of the rows on the page.
func (r ViewResult) PageIDs() []int {
	out := make([]int, 0, len(r.PageRows))
	for _, rec := range r.PageRows {
		out = append(out, rec.ID)
	}
	return out
}

// searchFields are matched by the global search text.
var searchFields = []domain.Field{
	domain.FieldHeader,
	domain.FieldType,
	domain.FieldStatus,
	domain.FieldReviewer,
	domain.FieldDescription,
	domain.FieldTags,
}

// ComputeView searches, filters, sorts, and paginates records. It reads no
// clock and mutates none of its inputs.
func ComputeView(schema domain.Schema, records []domain.Record, vs ViewState) ViewResult {
	needle := strings.ToLower(strings.TrimSpace(vs.GlobalSearch))
	filterKeys := slices.Sorted(maps.Keys(vs.ColumnFilters))

	rows := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if needle != "" && !matchesSearch(rec, needle) {
			continue
		}
		if !matchesFilters(rec, filterKeys, vs.ColumnFilters) {
			continue
		}
		rows = append(rows, rec)
	}

	if vs.SortKey != "" {
		slices.SortStableFunc(rows, func(a, b domain.Record) int {
			return compareRecords(schema, vs.SortKey, vs.SortDirection, a, b)
		})
	}

	size := vs.pageSize()
	total := len(rows)
	pageCount := total / size
	if total%size != 0 {
		pageCount++
	}
	index := vs.PageIndex
	if index >= pageCount {
		index = pageCount - 1
	}
	index = max(index, 0)

	start := min(index*size, total)
	end := start + min(size, total-start)
	page := make([]domain.Record, 0, end-start)
	for _, rec := range rows[start:end] {
		page = append(page, rec.Clone())
	}
	ids := make([]int, 0, total)
	for _, rec := range rows {
		ids = append(ids, rec.ID)
	}
	return ViewResult{
		PageRows:      page,
		FilteredIDs:   ids,
		TotalFiltered: total,
		PageCount:     pageCount,
		PageIndex:     index,
		PageSize:      size,
	}
}

func matchesSearch(r domain.Record, needle string) bool {
	for _, f := range searchFields {
		if strings.Contains(strings.ToLower(r.Value(f)), needle) {
			return true
		}
	}
	return false
}

func matchesFilters(r domain.Record, keys []domain.Field, filters map[domain.Field]ColumnFilter) bool {
	for _, field := range keys {
		f := filters[field]
		if f.Active() && !f.matches(field, r) {
			return false
		}
	}
	return true
}

// compareRecords orders two records by one field. Empty due dates sort last
// in both directions.
func compareRecords(schema domain.Schema, field domain.Field, dir SortDirection, a, b domain.Record) int {
	if field == domain.FieldDueDate && (a.DueDate == "") != (b.DueDate == "") {
		if a.DueDate == "" {
			return 1
		}
		return -1
	}
	c := compareField(schema, field, a, b)
	if dir == SortDesc {
		return -c
	}
	return c
}

func compareField(schema domain.Schema, field domain.Field, a, b domain.Record) int {
	switch field {
	case domain.FieldID:
		return cmp.Compare(a.ID, b.ID)
	case domain.FieldType:
		return cmp.Compare(schema.TypeRank(a.Type), schema.TypeRank(b.Type))
	case domain.FieldStatus:
		return cmp.Compare(a.Status.Rank(), b.Status.Rank())
	case domain.FieldPriority:
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case domain.FieldTarget, domain.FieldLimit:
		return compareNumeric(a.Value(field), b.Value(field))
	case domain.FieldDueDate:
		// YYYY-MM-DD compares chronologically as text.
		return strings.Compare(a.DueDate, b.DueDate)
	default:
		return compareText(a.Value(field), b.Value(field))
	}
}

// compareNumeric puts numbers before text, numbers by value and text
// case-insensitively.
func compareNumeric(a, b string) int {
	af, aErr := strconv.ParseFloat(strings.TrimSpace(a), 64)
	bf, bErr := strconv.ParseFloat(strings.TrimSpace(b), 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(af, bf)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return compareText(a, b)
	}
}

func compareText(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// FacetValue is one distinct column value and how many records carry it.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets lists the distinct values of field across records. Enumerated
// fields follow declaration order; everything else is alphabetical.
func Facets(schema domain.Schema, records []domain.Record, field domain.Field) []FacetValue {
	counts := map[string]int{}
	for _, rec := range records {
		if field == domain.FieldTags {
			for _, tag := range rec.Tags {
				counts[tag]++
			}
			continue
		}
		v := rec.Value(field)
		if v == "" {
			continue
		}
		counts[v]++
	}
	out := make([]FacetValue, 0, len(counts))
	for v, n := range counts {
		out = append(out, FacetValue{Value: v, Count: n})
	}
	slices.SortFunc(out, func(a, b FacetValue) int {
		if c := compareFacet(schema, field, a.Value, b.Value); c != 0 {
			return c
		}
		return compareText(a.Value, b.Value)
	})
	return out
}

func compareFacet(schema domain.Schema, field domain.Field, a, b string) int {
	switch field {
	case domain.FieldStatus:
		return cmp.Compare(domain.Status(a).Rank(), domain.Status(b).Rank())
	case domain.FieldPriority:
		return cmp.Compare(domain.Priority(b).Rank(), domain.Priority(a).Rank())
	case domain.FieldType:
		return cmp.Compare(schema.TypeRank(domain.SectionType(a)), schema.TypeRank(domain.SectionType(b)))
	case domain.FieldTarget, domain.FieldLimit:
		return compareNumeric(a, b)
	default:
		return compareText(a, b)
	}
}
