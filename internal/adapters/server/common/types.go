// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/sectboard/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that contradict the current table state.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a missing backing service.
var ErrUnavailable = errors.New("service unavailable")

// ActorInput carries optional caller attribution for mutations.
type ActorInput struct {
	ActorID   string `json:"actor_id,omitempty"`
	ActorType string `json:"actor_type,omitempty"`
}

// ViewRequest describes one filtered, sorted, and paginated read.
type ViewRequest struct {
	Search   string
	Sort     string
	Dir      string
	Page     int
	PageSize int
	// Filters maps a field name to the accepted values.
	Filters map[string][]string
}

// ViewResponse is one computed page plus the counts needed to render paging.
type ViewResponse struct {
	Records       []domain.Record `json:"records"`
	FilteredIDs   []int           `json:"filtered_ids"`
	TotalRecords  int             `json:"total_records"`
	TotalFiltered int             `json:"total_filtered"`
	PageIndex     int             `json:"page_index"`
	PageCount     int             `json:"page_count"`
	PageSize      int             `json:"page_size"`
	StateHash     string          `json:"state_hash"`
}

// CreateRecordRequest captures input for one new record. A zero ID lets the
// table pick the next free id.
type CreateRecordRequest struct {
	ID          int      `json:"id,omitempty"`
	Header      string   `json:"header"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Target      string   `json:"target,omitempty"`
	Limit       string   `json:"limit,omitempty"`
	Reviewer    string   `json:"reviewer,omitempty"`
	Description string   `json:"description,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ActorInput
}

// UpdateFieldsRequest captures a partial edit of one record. Field values use
// their transport spelling; tags are comma separated.
type UpdateFieldsRequest struct {
	ID     int               `json:"id"`
	Fields map[string]string `json:"fields"`
	ActorInput
}

// DeleteRecordsRequest captures ids to remove. Unknown ids are ignored.
type DeleteRecordsRequest struct {
	IDs []int `json:"ids"`
	ActorInput
}

// DeleteRecordsResponse lists the ids that were actually removed.
type DeleteRecordsResponse struct {
	Removed []int `json:"removed"`
}

// BulkEditRequest applies the same field values to several records at once.
type BulkEditRequest struct {
	IDs    []int             `json:"ids"`
	Fields map[string]string `json:"fields"`
	ActorInput
}

// ReorderRequest replaces the canonical order.
type ReorderRequest struct {
	Order []int `json:"order"`
	ActorInput
}

// MoveRecordRequest moves one record to a canonical index.
type MoveRecordRequest struct {
	ID      int `json:"id"`
	ToIndex int `json:"to_index"`
	ActorInput
}

// OrderResponse reports the canonical order after a reorder.
type OrderResponse struct {
	Order []int `json:"order"`
}

// FacetValue is one distinct column value with its row count.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ChangeEvent is one transport-visible ledger entry.
type ChangeEvent struct {
	Seq        int64     `json:"seq"`
	MutationID string    `json:"mutation_id,omitempty"`
	Op         string    `json:"op"`
	RecordIDs  []int     `json:"record_ids"`
	Fields     []string  `json:"fields,omitempty"`
	ActorID    string    `json:"actor_id"`
	ActorType  string    `json:"actor_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TableService is the app-facing contract shared by the HTTP and MCP adapters.
type TableService interface {
	View(context.Context, ViewRequest) (ViewResponse, error)
	GetRecord(context.Context, int) (domain.Record, error)
	CreateRecord(context.Context, CreateRecordRequest) (domain.Record, error)
	UpdateFields(context.Context, UpdateFieldsRequest) (domain.Record, error)
	DeleteRecords(context.Context, DeleteRecordsRequest) (DeleteRecordsResponse, error)
	BulkEdit(context.Context, BulkEditRequest) ([]domain.Record, error)
	Reorder(context.Context, ReorderRequest) (OrderResponse, error)
	MoveRecord(context.Context, MoveRecordRequest) (OrderResponse, error)
	Facets(context.Context, string) ([]FacetValue, error)
	ListChanges(context.Context, int) ([]ChangeEvent, error)
}
