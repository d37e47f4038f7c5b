package domain

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

var defaultSectionTypes = []SectionType{
	"Cover Page",
	"Table of Contents",
	"Executive Summary",
	"Technical Approach",
	"Design",
	"Capabilities",
	"Focus Documents",
	"Narrative",
}

// Schema is the structural contract every stored record satisfies.
type Schema struct {
	SectionTypes []SectionType
}

// DefaultSchema returns the stock section categories.
func DefaultSchema() Schema {
	return Schema{SectionTypes: slices.Clone(defaultSectionTypes)}
}

// NewSchema builds a schema from configured section type names.
func NewSchema(types []string) (Schema, error) {
	if len(types) == 0 {
		return DefaultSchema(), nil
	}
	out := make([]SectionType, 0, len(types))
	seen := map[string]struct{}{}
	for _, raw := range types {
		name := strings.TrimSpace(raw)
		if name == "" {
			return Schema{}, invalid(FieldType, raw, "section type name is empty")
		}
		key := foldKey(name)
		if _, ok := seen[key]; ok {
			return Schema{}, invalid(FieldType, name, "section type is duplicated")
		}
		seen[key] = struct{}{}
		out = append(out, SectionType(name))
	}
	return Schema{SectionTypes: out}, nil
}

// ParseType resolves a section type against the schema, ignoring case.
func (s Schema) ParseType(raw string) (SectionType, error) {
	key := foldKey(raw)
	for _, t := range s.SectionTypes {
		if foldKey(string(t)) == key {
			return t, nil
		}
	}
	return "", invalid(FieldType, raw, "unknown section type")
}

// TypeRank returns the declaration index of t; unknown types sort last.
func (s Schema) TypeRank(t SectionType) int {
	if idx := slices.Index(s.SectionTypes, t); idx >= 0 {
		return idx
	}
	return len(s.SectionTypes)
}

// Normalize validates r and returns its canonical form.
func (s Schema) Normalize(r Record) (Record, error) {
	out := r.Clone()
	if out.ID <= 0 {
		return Record{}, invalid(FieldID, strconv.Itoa(out.ID), "must be a positive integer")
	}

	out.Header = strings.TrimSpace(out.Header)
	if out.Header == "" {
		return Record{}, invalid(FieldHeader, "", "is required")
	}

	typ, err := s.ParseType(string(out.Type))
	if err != nil {
		return Record{}, err
	}
	out.Type = typ

	status, err := ParseStatus(string(out.Status))
	if err != nil {
		return Record{}, err
	}
	out.Status = status

	out.Target = strings.TrimSpace(out.Target)
	out.Limit = strings.TrimSpace(out.Limit)
	out.Description = strings.TrimSpace(out.Description)

	out.Reviewer = strings.TrimSpace(out.Reviewer)
	if out.Reviewer == "" {
		out.Reviewer = UnassignedReviewer
	}

	out.DueDate = strings.TrimSpace(out.DueDate)
	if out.DueDate != "" {
		if _, err := time.Parse(DueDateLayout, out.DueDate); err != nil {
			return Record{}, invalid(FieldDueDate, out.DueDate, "must be a YYYY-MM-DD date")
		}
	}

	priority, err := ParsePriority(string(out.Priority))
	if err != nil {
		return Record{}, err
	}
	out.Priority = priority

	tags, err := normalizeTags(out.Tags)
	if err != nil {
		return Record{}, err
	}
	out.Tags = tags
	return out, nil
}

// Validate reports the first constraint r violates.
func (s Schema) Validate(r Record) error {
	_, err := s.Normalize(r)
	return err
}
