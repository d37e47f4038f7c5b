// Package report renders table views and change feeds as plain terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
)

// Options tunes one rendered report.
type Options struct {
	Columns []domain.Field
	Now     time.Time
	Width   int
	Plain   bool
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	altCellStyle = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// columnTitles holds display titles for record fields.
var columnTitles = map[domain.Field]string{
	domain.FieldID:          "#",
	domain.FieldHeader:      "Header",
	domain.FieldType:        "Section Type",
	domain.FieldStatus:      "Status",
	domain.FieldTarget:      "Target",
	domain.FieldLimit:       "Limit",
	domain.FieldReviewer:    "Reviewer",
	domain.FieldDueDate:     "Due",
	domain.FieldPriority:    "Priority",
	domain.FieldTags:        "Tags",
	domain.FieldDescription: "Description",
}

// Title returns the display title of one column.
func Title(field domain.Field) string {
	if title, ok := columnTitles[field]; ok {
		return title
	}
	return string(field)
}

// Cell formats one record field for display. Overdue due dates are flagged
// against now; a zero now disables the marker.
func Cell(rec domain.Record, field domain.Field, now time.Time) string {
	switch field {
	case domain.FieldReviewer:
		if !rec.Assigned() {
			return domain.UnassignedReviewer
		}
		return rec.ReviewerInitials() + " " + rec.Reviewer
	case domain.FieldDueDate:
		if !now.IsZero() && rec.Overdue(now) {
			return rec.DueDate + " !"
		}
		return rec.DueDate
	case domain.FieldTags:
		return strings.Join(rec.Tags, ", ")
	case domain.FieldDescription:
		line, _, _ := strings.Cut(rec.Description, "\n")
		return truncate(line, 40)
	default:
		return rec.Value(field)
	}
}

// Sections writes one computed page followed by a paging summary.
func Sections(w io.Writer, res app.ViewResult, total int, opts Options) error {
	columns := opts.Columns
	if len(columns) == 0 {
		columns = []domain.Field{
			domain.FieldID,
			domain.FieldHeader,
			domain.FieldType,
			domain.FieldStatus,
			domain.FieldTarget,
			domain.FieldLimit,
			domain.FieldReviewer,
		}
	}
	headers := make([]string, 0, len(columns))
	for _, field := range columns {
		headers = append(headers, Title(field))
	}

	t := newTable(opts).Headers(headers...)
	overdue := map[int]bool{}
	for i, rec := range res.PageRows {
		row := make([]string, 0, len(columns))
		for _, field := range columns {
			row = append(row, Cell(rec, field, opts.Now))
		}
		t.Row(row...)
		if !opts.Now.IsZero() && rec.Overdue(opts.Now) {
			overdue[i] = true
		}
	}
	if !opts.Plain {
		t.StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case overdue[row]:
				return overdueStyle
			case row%2 == 1:
				return altCellStyle
			default:
				return cellStyle
			}
		})
	}

	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return fmt.Errorf("write sections table: %w", err)
	}
	page := res.PageIndex + 1
	if res.PageCount == 0 {
		page = 0
	}
	if _, err := fmt.Fprintf(w, "%d of %d row(s) shown, page %d of %d\n", res.TotalFiltered, total, page, res.PageCount); err != nil {
		return fmt.Errorf("write sections summary: %w", err)
	}
	return nil
}

// Changes writes the newest-first change feed.
func Changes(w io.Writer, events []domain.ChangeEvent, opts Options) error {
	t := newTable(opts).Headers("When", "Operation", "Records", "Fields", "Actor")
	for _, ev := range events {
		ids := make([]string, 0, len(ev.RecordIDs))
		for _, id := range ev.RecordIDs {
			ids = append(ids, fmt.Sprint(id))
		}
		fields := make([]string, 0, len(ev.Fields))
		for _, f := range ev.Fields {
			fields = append(fields, string(f))
		}
		t.Row(
			ev.OccurredAt.UTC().Format(time.RFC3339),
			string(ev.Op),
			strings.Join(ids, ","),
			strings.Join(fields, ","),
			fmt.Sprintf("%s (%s)", ev.ActorID, ev.ActorType),
		)
	}
	if !opts.Plain {
		t.StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	}
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return fmt.Errorf("write changes table: %w", err)
	}
	return nil
}

func newTable(opts Options) *table.Table {
	t := table.New().Border(lipgloss.RoundedBorder())
	if opts.Plain {
		t = t.Border(lipgloss.NormalBorder())
	} else {
		t = t.BorderStyle(borderStyle)
	}
	if opts.Width > 0 {
		t = t.Width(opts.Width)
	}
	return t
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
