package app

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hylla/sectboard/internal/domain"
)

func headers(rows []domain.Record) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Header)
	}
	return out
}

func TestComputeViewSortHeaderDesc(t *testing.T) {
	records := []domain.Record{
		{ID: 1, Header: "A", Status: domain.StatusDone},
		{ID: 2, Header: "B", Status: domain.StatusInProgress},
	}
	vs := NewViewState().ToggleSort(domain.FieldHeader).ToggleSort(domain.FieldHeader)
	if vs.SortDirection != SortDesc {
		t.Fatalf("expected second toggle to sort desc, got %q", vs.SortDirection)
	}
	got := ComputeView(domain.DefaultSchema(), records, vs)
	if diff := cmp.Diff([]string{"B", "A"}, headers(got.PageRows)); diff != "" {
		t.Fatalf("page rows mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeViewIsPure(t *testing.T) {
	records := sampleRecords(25)
	vs := NewViewState().WithSearch("section").WithFilter(domain.FieldStatus, "not started").ToggleSort(domain.FieldTarget).WithPage(9)
	first := ComputeView(domain.DefaultSchema(), records, vs)
	second := ComputeView(domain.DefaultSchema(), records, vs)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("ComputeView() not deterministic (-first +second):\n%s", diff)
	}
	if first.PageIndex != 2 {
		t.Fatalf("expected clamped page index 2, got %d", first.PageIndex)
	}
	if diff := cmp.Diff(sampleRecords(25), records); diff != "" {
		t.Fatalf("ComputeView() mutated its input (-want +got):\n%s", diff)
	}
}

func TestComputeViewClampsAfterRemoval(t *testing.T) {
	s := newLoadedStore(t, 25)
	vs := NewViewState().WithPage(2)
	got := ComputeView(s.Schema(), s.Records(), vs)
	if got.PageIndex != 2 || got.PageCount != 3 || len(got.PageRows) != 5 {
		t.Fatalf("unexpected first page %+v", got)
	}
	s.Remove(s.IDs()[:20]...)
	got = ComputeView(s.Schema(), s.Records(), vs)
	if got.PageIndex != 0 {
		t.Fatalf("expected page index clamped to 0, got %d", got.PageIndex)
	}
	if got.PageCount != 1 || got.TotalFiltered != 5 {
		t.Fatalf("unexpected view %+v", got)
	}
	s.Remove(s.IDs()...)
	got = ComputeView(s.Schema(), s.Records(), vs)
	if got.PageIndex != 0 || got.PageCount != 0 || len(got.PageRows) != 0 {
		t.Fatalf("unexpected empty view %+v", got)
	}
}

func TestComputeViewHugePageSizes(t *testing.T) {
	records := sampleRecords(3)
	cases := []struct {
		name string
		vs   ViewState
	}{
		{"raw max page size", ViewState{PageSize: math.MaxInt, PageIndex: 4}},
		{"resize from far page", NewViewState().WithPage(math.MaxInt).WithPageSize(math.MaxInt)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeView(domain.DefaultSchema(), records, tc.vs)
			if got.PageCount != 1 || got.PageIndex != 0 || len(got.PageRows) != 3 {
				t.Fatalf("expected one page of 3 rows, got count %d index %d rows %d", got.PageCount, got.PageIndex, len(got.PageRows))
			}
		})
	}
}

func TestComputeViewSearchAndFilters(t *testing.T) {
	records := []domain.Record{
		{ID: 1, Header: "Cover page", Type: "Cover Page", Status: domain.StatusDone, Reviewer: "Eddie Lake", Tags: []string{"Draft"}},
		{ID: 2, Header: "Table of contents", Type: "Table of Contents", Status: domain.StatusInProgress, Reviewer: "Eddie Lake"},
		{ID: 3, Header: "Design notes", Type: "Design", Status: domain.StatusDone, Reviewer: domain.UnassignedReviewer, Tags: []string{"Review", "Draft"}},
	}
	schema := domain.DefaultSchema()

	got := ComputeView(schema, records, NewViewState().WithSearch("  COVER "))
	if diff := cmp.Diff([]int{1}, got.FilteredIDs); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}

	vs := NewViewState().WithFilter(domain.FieldStatus, "done").WithFilter(domain.FieldReviewer, "eddie lake")
	got = ComputeView(schema, records, vs)
	if diff := cmp.Diff([]int{1}, got.FilteredIDs); diff != "" {
		t.Fatalf("AND filters mismatch (-want +got):\n%s", diff)
	}
	if vs.ActiveFilterCount() != 2 {
		t.Fatalf("unexpected active filter count %d", vs.ActiveFilterCount())
	}

	got = ComputeView(schema, records, NewViewState().WithFilter(domain.FieldTags, "review"))
	if diff := cmp.Diff([]int{3}, got.FilteredIDs); diff != "" {
		t.Fatalf("tag filter mismatch (-want +got):\n%s", diff)
	}

	cleared := vs.ToggleFilterValue(domain.FieldStatus, "DONE").ClearFilters()
	if cleared.ActiveFilterCount() != 0 || cleared.GlobalSearch != "" {
		t.Fatalf("expected filters cleared, got %+v", cleared)
	}
	if vs.ActiveFilterCount() != 2 {
		t.Fatal("ViewState methods must not modify the receiver")
	}
}

func TestComputeViewTypedComparators(t *testing.T) {
	records := []domain.Record{
		{ID: 1, Header: "one", Type: "Narrative", Status: domain.StatusDone, Priority: domain.PriorityLow, Target: "10", DueDate: ""},
		{ID: 2, Header: "two", Type: "Cover Page", Status: domain.StatusNotStarted, Priority: domain.PriorityHigh, Target: "9", DueDate: "2026-03-01"},
		{ID: 3, Header: "three", Type: "Design", Status: domain.StatusInProgress, Priority: domain.PriorityMedium, Target: "n/a", DueDate: "2026-01-15"},
	}
	schema := domain.DefaultSchema()
	ids := func(field domain.Field, dir SortDirection) []int {
		vs := NewViewState()
		vs.SortKey = field
		vs.SortDirection = dir
		return ComputeView(schema, records, vs).FilteredIDs
	}
	cases := []struct {
		field domain.Field
		dir   SortDirection
		want  []int
	}{
		{domain.FieldStatus, SortAsc, []int{2, 3, 1}},
		{domain.FieldPriority, SortAsc, []int{1, 3, 2}},
		{domain.FieldPriority, SortDesc, []int{2, 3, 1}},
		{domain.FieldType, SortAsc, []int{2, 3, 1}},
		{domain.FieldTarget, SortAsc, []int{2, 1, 3}},
		{domain.FieldDueDate, SortAsc, []int{3, 2, 1}},
		{domain.FieldDueDate, SortDesc, []int{2, 3, 1}},
		{domain.FieldID, SortDesc, []int{3, 2, 1}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, ids(tc.field, tc.dir)); diff != "" {
			t.Fatalf("sort %s %s mismatch (-want +got):\n%s", tc.field, tc.dir, diff)
		}
	}
}

func TestComputeViewStableSort(t *testing.T) {
	records := []domain.Record{
		{ID: 1, Header: "x", Status: domain.StatusDone},
		{ID: 2, Header: "y", Status: domain.StatusNotStarted},
		{ID: 3, Header: "z", Status: domain.StatusDone},
		{ID: 4, Header: "w", Status: domain.StatusNotStarted},
	}
	vs := NewViewState().ToggleSort(domain.FieldStatus)
	got := ComputeView(domain.DefaultSchema(), records, vs)
	if diff := cmp.Diff([]int{2, 4, 1, 3}, got.FilteredIDs); diff != "" {
		t.Fatalf("stable sort mismatch (-want +got):\n%s", diff)
	}
}

func TestViewStatePaging(t *testing.T) {
	vs := NewViewState().WithPage(3)
	resized := vs.WithPageSize(20)
	if resized.PageIndex != 1 || resized.PageSize != 20 {
		t.Fatalf("expected top row kept visible, got page %d size %d", resized.PageIndex, resized.PageSize)
	}
	if vs.WithPage(-4).PageIndex != 0 {
		t.Fatal("expected negative page index clamped")
	}
	if NewViewState().WithPageSize(0).PageSize != DefaultPageSize {
		t.Fatal("expected default page size for invalid size")
	}
}

func TestViewStateToggleColumn(t *testing.T) {
	vs := NewViewState().ToggleColumn(domain.FieldLimit)
	if vs.IsVisible(domain.FieldLimit) {
		t.Fatal("expected limit hidden")
	}
	vs = vs.ToggleColumn(domain.FieldLimit)
	if diff := cmp.Diff(domain.AllFields(), vs.VisibleColumns); diff != "" {
		t.Fatalf("expected column restored in place (-want +got):\n%s", diff)
	}
	if !vs.ToggleColumn(domain.FieldHeader).IsVisible(domain.FieldHeader) {
		t.Fatal("header must stay visible")
	}
}

func TestFacets(t *testing.T) {
	records := []domain.Record{
		{ID: 1, Status: domain.StatusDone, Priority: domain.PriorityLow, Tags: []string{"Draft"}},
		{ID: 2, Status: domain.StatusNotStarted, Priority: domain.PriorityHigh, Tags: []string{"Draft", "Review"}},
		{ID: 3, Status: domain.StatusDone, Priority: domain.PriorityHigh},
	}
	schema := domain.DefaultSchema()
	want := []FacetValue{{Value: "Not Started", Count: 1}, {Value: "Done", Count: 2}}
	if diff := cmp.Diff(want, Facets(schema, records, domain.FieldStatus)); diff != "" {
		t.Fatalf("status facets mismatch (-want +got):\n%s", diff)
	}
	want = []FacetValue{{Value: "High", Count: 2}, {Value: "Low", Count: 1}}
	if diff := cmp.Diff(want, Facets(schema, records, domain.FieldPriority)); diff != "" {
		t.Fatalf("priority facets mismatch (-want +got):\n%s", diff)
	}
	want = []FacetValue{{Value: "Draft", Count: 2}, {Value: "Review", Count: 1}}
	if diff := cmp.Diff(want, Facets(schema, records, domain.FieldTags)); diff != "" {
		t.Fatalf("tag facets mismatch (-want +got):\n%s", diff)
	}
}
