package domain

import (
	"slices"
	"strings"
)

// Edit is a typed assignment of one record field.
// The set of implementations is closed; see the *Edit types below.
type Edit interface {
	Field() Field
	assign(*Record)
}

// HeaderEdit sets the section title.
type HeaderEdit struct{ Value string }

// TypeEdit sets the section type; the schema decides which types exist.
type TypeEdit struct{ Value SectionType }

// StatusEdit moves a section through its workflow.
type StatusEdit struct{ Value Status }

// TargetEdit sets the target length text.
type TargetEdit struct{ Value string }

// LimitEdit sets the length limit text.
type LimitEdit struct{ Value string }

// ReviewerEdit assigns a reviewer. Blank means unassigned.
type ReviewerEdit struct{ Value string }

// DescriptionEdit replaces the markdown description.
type DescriptionEdit struct{ Value string }

// DueDateEdit sets the due date as YYYY-MM-DD, or clears it when empty.
type DueDateEdit struct{ Value string }

// PriorityEdit sets the priority.
type PriorityEdit struct{ Value Priority }

// TagsEdit replaces the tag list.
type TagsEdit struct{ Value []string }

// Field reports FieldHeader.
func (HeaderEdit) Field() Field { return FieldHeader }

// Field reports FieldType.
func (TypeEdit) Field() Field { return FieldType }

// Field reports FieldStatus.
func (StatusEdit) Field() Field { return FieldStatus }

// Field reports FieldTarget.
func (TargetEdit) Field() Field { return FieldTarget }

// Field reports FieldLimit.
func (LimitEdit) Field() Field { return FieldLimit }

// Field reports FieldReviewer.
func (ReviewerEdit) Field() Field { return FieldReviewer }

// Field reports FieldDescription.
func (DescriptionEdit) Field() Field { return FieldDescription }

// Field reports FieldDueDate.
func (DueDateEdit) Field() Field { return FieldDueDate }

// Field reports FieldPriority.
func (PriorityEdit) Field() Field { return FieldPriority }

// Field reports FieldTags.
func (TagsEdit) Field() Field { return FieldTags }

func (e HeaderEdit) assign(r *Record)      { r.Header = e.Value }
func (e TypeEdit) assign(r *Record)        { r.Type = e.Value }
func (e StatusEdit) assign(r *Record)      { r.Status = e.Value }
func (e TargetEdit) assign(r *Record)      { r.Target = e.Value }
func (e LimitEdit) assign(r *Record)       { r.Limit = e.Value }
func (e ReviewerEdit) assign(r *Record)    { r.Reviewer = e.Value }
func (e DescriptionEdit) assign(r *Record) { r.Description = e.Value }
func (e DueDateEdit) assign(r *Record)     { r.DueDate = e.Value }
func (e PriorityEdit) assign(r *Record)    { r.Priority = e.Value }
func (e TagsEdit) assign(r *Record)        { r.Tags = slices.Clone(e.Value) }

// ParseEdit builds the typed edit for a field from its text form.
// Tags are comma separated.
func ParseEdit(field Field, raw string) (Edit, error) {
	switch field {
	case FieldHeader:
		return HeaderEdit{Value: raw}, nil
	case FieldType:
		return TypeEdit{Value: SectionType(raw)}, nil
	case FieldStatus:
		status, err := ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		return StatusEdit{Value: status}, nil
	case FieldTarget:
		return TargetEdit{Value: raw}, nil
	case FieldLimit:
		return LimitEdit{Value: raw}, nil
	case FieldReviewer:
		return ReviewerEdit{Value: raw}, nil
	case FieldDescription:
		return DescriptionEdit{Value: raw}, nil
	case FieldDueDate:
		return DueDateEdit{Value: raw}, nil
	case FieldPriority:
		priority, err := ParsePriority(raw)
		if err != nil {
			return nil, err
		}
		return PriorityEdit{Value: priority}, nil
	case FieldTags:
		return TagsEdit{Value: strings.Split(raw, ",")}, nil
	case FieldID:
		return nil, invalid(FieldID, raw, "is immutable")
	default:
		return nil, invalid(field, raw, "unknown field")
	}
}

// ApplyEdits returns r with every edit assigned and the result normalized.
// r itself is never modified.
func ApplyEdits(s Schema, r Record, edits ...Edit) (Record, error) {
	next := r.Clone()
	for _, e := range edits {
		if e == nil {
			continue
		}
		e.assign(&next)
	}
	return s.Normalize(next)
}

// FieldsOf lists the distinct fields touched by edits in order.
func FieldsOf(edits []Edit) []Field {
	out := make([]Field, 0, len(edits))
	for _, e := range edits {
		if e == nil || slices.Contains(out, e.Field()) {
			continue
		}
		out = append(out, e.Field())
	}
	return out
}

// EditBuffer is a staged copy of one record during interactive editing.
type EditBuffer struct {
	record Record
	dirty  []Field
}

// NewEditBuffer deep-copies r into a fresh buffer.
func NewEditBuffer(r Record) *EditBuffer {
	return &EditBuffer{record: r.Clone()}
}

// ID returns the id of the buffered record.
func (b *EditBuffer) ID() int {
	return b.record.ID
}

// Set stages one edit.
func (b *EditBuffer) Set(e Edit) {
	if e == nil {
		return
	}
	e.assign(&b.record)
	if !slices.Contains(b.dirty, e.Field()) {
		b.dirty = append(b.dirty, e.Field())
	}
}

// Record returns a copy of the staged record.
func (b *EditBuffer) Record() Record {
	return b.record.Clone()
}

// Dirty returns the fields changed since the buffer was opened.
func (b *EditBuffer) Dirty() []Field {
	return slices.Clone(b.dirty)
}

// Edits expresses the whole buffer as one edit per editable field.
func (b *EditBuffer) Edits() []Edit {
	r := b.record
	return []Edit{
		HeaderEdit{Value: r.Header},
		TypeEdit{Value: r.Type},
		StatusEdit{Value: r.Status},
		TargetEdit{Value: r.Target},
		LimitEdit{Value: r.Limit},
		ReviewerEdit{Value: r.Reviewer},
		DescriptionEdit{Value: r.Description},
		DueDateEdit{Value: r.DueDate},
		PriorityEdit{Value: r.Priority},
		TagsEdit{Value: slices.Clone(r.Tags)},
	}
}

// StagedEdits returns only the edits of dirty fields, in field order.
func (b *EditBuffer) StagedEdits() []Edit {
	var out []Edit
	for _, e := range b.Edits() {
		if slices.Contains(b.dirty, e.Field()) {
			out = append(out, e)
		}
	}
	return out
}

// Rebase replaces every clean field with its value in live. Staged fields
// keep their buffered value.
func (b *EditBuffer) Rebase(live Record) {
	next := live.Clone()
	next.ID = b.record.ID
	for _, e := range b.StagedEdits() {
		e.assign(&next)
	}
	b.record = next
}
