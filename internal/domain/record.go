package domain

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// UnassignedReviewer is the reviewer value of a record nobody has picked up.
const UnassignedReviewer = "Assign reviewer"

// DueDateLayout is the calendar format of Record.DueDate.
const DueDateLayout = "2006-01-02"

const maxTagLength = 32

// Field names one column of a record.
type Field string

// Field values in default column order.
const (
	FieldID          Field = "id"
	FieldHeader      Field = "header"
	FieldType        Field = "type"
	FieldStatus      Field = "status"
	FieldTarget      Field = "target"
	FieldLimit       Field = "limit"
	FieldReviewer    Field = "reviewer"
	FieldDueDate     Field = "due_date"
	FieldPriority    Field = "priority"
	FieldTags        Field = "tags"
	FieldDescription Field = "description"
)

var allFields = []Field{
	FieldID,
	FieldHeader,
	FieldType,
	FieldStatus,
	FieldTarget,
	FieldLimit,
	FieldReviewer,
	FieldDueDate,
	FieldPriority,
	FieldTags,
	FieldDescription,
}

// AllFields returns every record field in default column order.
func AllFields() []Field {
	return slices.Clone(allFields)
}

// EditableFields returns the fields an edit may target.
func EditableFields() []Field {
	return slices.Clone(allFields[1:])
}

// ParseField resolves a column name, accepting snake and camel spellings.
func ParseField(raw string) (Field, error) {
	key := foldKey(raw)
	for _, f := range allFields {
		if foldKey(string(f)) == key {
			return f, nil
		}
	}
	return "", invalid("field", raw, "unknown field")
}

// Status is the progress state of a section.
type Status string

// Status values in declaration order.
const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

var validStatuses = []Status{StatusNotStarted, StatusInProgress, StatusDone}

// Statuses returns all statuses in declaration order.
func Statuses() []Status {
	return slices.Clone(validStatuses)
}

// ParseStatus resolves a status ignoring case, spaces, and separators.
func ParseStatus(raw string) (Status, error) {
	key := foldKey(raw)
	for _, s := range validStatuses {
		if foldKey(string(s)) == key {
			return s, nil
		}
	}
	return "", invalid(FieldStatus, raw, "must be one of Not Started, In Progress, Done")
}

// Rank returns the declaration position, or -1 for unknown values.
func (s Status) Rank() int {
	return slices.Index(validStatuses, s)
}

// Priority is the urgency of a section.
type Priority string

// Priority values.
const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ranked low to high
var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Priorities returns all priorities from lowest to highest.
func Priorities() []Priority {
	return slices.Clone(validPriorities)
}

// ParsePriority resolves a priority ignoring case. Empty input yields Medium.
func ParsePriority(raw string) (Priority, error) {
	if strings.TrimSpace(raw) == "" {
		return PriorityMedium, nil
	}
	key := foldKey(raw)
	for _, p := range validPriorities {
		if foldKey(string(p)) == key {
			return p, nil
		}
	}
	return "", invalid(FieldPriority, raw, "must be one of High, Medium, Low")
}

// Rank orders priorities Low < Medium < High; unknown values rank -1.
func (p Priority) Rank() int {
	return slices.Index(validPriorities, p)
}

// SectionType is the category of a proposal section.
type SectionType string

// Record is one row of the sections table.
type Record struct {
	ID          int         `json:"id" yaml:"id"`
	Header      string      `json:"header" yaml:"header"`
	Type        SectionType `json:"type" yaml:"type"`
	Status      Status      `json:"status" yaml:"status"`
	Target      string      `json:"target" yaml:"target"`
	Limit       string      `json:"limit" yaml:"limit"`
	Reviewer    string      `json:"reviewer" yaml:"reviewer"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	DueDate     string      `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Priority    Priority    `json:"priority" yaml:"priority"`
	Tags        []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Clone returns a deep copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	out.Tags = slices.Clone(r.Tags)
	return out
}

// Assigned reports whether a reviewer has been picked.
func (r Record) Assigned() bool {
	return r.Reviewer != "" && r.Reviewer != UnassignedReviewer
}

// ReviewerInitials returns up to two uppercase initials of the reviewer.
func (r Record) ReviewerInitials() string {
	if !r.Assigned() {
		return ""
	}
	initials := make([]rune, 0, 2)
	for _, part := range strings.Fields(r.Reviewer) {
		initials = append(initials, []rune(strings.ToUpper(part))[0])
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

// Due parses DueDate. ok is false when the record has no due date.
func (r Record) Due() (time.Time, bool) {
	if r.DueDate == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(DueDateLayout, r.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Overdue reports whether the due date lies strictly before the day of now.
func (r Record) Overdue(now time.Time) bool {
	due, ok := r.Due()
	if !ok {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

// Value renders one field as text for search, filters, and facets.
func (r Record) Value(f Field) string {
	switch f {
	case FieldID:
		return strconv.Itoa(r.ID)
	case FieldHeader:
		return r.Header
	case FieldType:
		return string(r.Type)
	case FieldStatus:
		return string(r.Status)
	case FieldTarget:
		return r.Target
	case FieldLimit:
		return r.Limit
	case FieldReviewer:
		return r.Reviewer
	case FieldDueDate:
		return r.DueDate
	case FieldPriority:
		return string(r.Priority)
	case FieldTags:
		return strings.Join(r.Tags, ", ")
	case FieldDescription:
		return r.Description
	default:
		return ""
	}
}

func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if len(tag) > maxTagLength {
			return nil, invalid(FieldTags, tag, "tag is too long")
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// foldKey lowercases and strips spaces, underscores, and hyphens.
func foldKey(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
}
