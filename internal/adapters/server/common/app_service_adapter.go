package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto one app.Table.
type AppServiceAdapter struct {
	table        *app.Table
	changes      app.ChangeLog
	defaultActor app.MutationActor
}

// NewAppServiceAdapter builds one common adapter over a table. changes may be
// nil when the persistence backend keeps no ledger. defaultActor attributes
// mutations whose request names no actor.
func NewAppServiceAdapter(table *app.Table, changes app.ChangeLog, defaultActor app.MutationActor) *AppServiceAdapter {
	return &AppServiceAdapter{
		table:        table,
		changes:      changes,
		defaultActor: defaultActor,
	}
}

// WithDefaultActor returns a copy of the adapter attributing unnamed callers to actor.
func (a *AppServiceAdapter) WithDefaultActor(actor app.MutationActor) *AppServiceAdapter {
	out := *a
	out.defaultActor = actor
	return &out
}

// View computes one page of the table.
func (a *AppServiceAdapter) View(_ context.Context, in ViewRequest) (ViewResponse, error) {
	if err := a.ready(); err != nil {
		return ViewResponse{}, err
	}
	vs, err := viewStateFromRequest(in)
	if err != nil {
		return ViewResponse{}, err
	}
	records := a.table.Records()
	result := app.ComputeView(a.table.Schema(), records, vs)
	hash, err := computeStateHash(records)
	if err != nil {
		return ViewResponse{}, err
	}
	rows := result.PageRows
	if rows == nil {
		rows = []domain.Record{}
	}
	filtered := result.FilteredIDs
	if filtered == nil {
		filtered = []int{}
	}
	return ViewResponse{
		Records:       rows,
		FilteredIDs:   filtered,
		TotalRecords:  len(records),
		TotalFiltered: result.TotalFiltered,
		PageIndex:     result.PageIndex,
		PageCount:     result.PageCount,
		PageSize:      result.PageSize,
		StateHash:     hash,
	}, nil
}

// GetRecord returns one record by id.
func (a *AppServiceAdapter) GetRecord(_ context.Context, id int) (domain.Record, error) {
	if err := a.ready(); err != nil {
		return domain.Record{}, err
	}
	rec, err := a.table.Get(id)
	if err != nil {
		return domain.Record{}, mapAppError("get record", err)
	}
	return rec, nil
}

// CreateRecord inserts one record.
func (a *AppServiceAdapter) CreateRecord(ctx context.Context, in CreateRecordRequest) (domain.Record, error) {
	if err := a.ready(); err != nil {
		return domain.Record{}, err
	}
	if in.ID < 0 {
		return domain.Record{}, fmt.Errorf("create record: id must not be negative: %w", ErrInvalidRequest)
	}
	ctx, err := a.withActor(ctx, in.ActorInput)
	if err != nil {
		return domain.Record{}, err
	}
	rec := domain.Record{
		ID:          in.ID,
		Header:      in.Header,
		Type:        domain.SectionType(in.Type),
		Status:      domain.Status(in.Status),
		Target:      in.Target,
		Limit:       in.Limit,
		Reviewer:    in.Reviewer,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    domain.Priority(in.Priority),
		Tags:        slices.Clone(in.Tags),
	}
	if rec.Status != "" {
		status, err := domain.ParseStatus(string(rec.Status))
		if err != nil {
			return domain.Record{}, mapAppError("create record", err)
		}
		rec.Status = status
	}
	if rec.Priority != "" {
		priority, err := domain.ParsePriority(string(rec.Priority))
		if err != nil {
			return domain.Record{}, mapAppError("create record", err)
		}
		rec.Priority = priority
	}
	if in.ID > 0 {
		if _, err := a.table.Get(in.ID); err == nil {
			return domain.Record{}, fmt.Errorf("create record: id %d already exists: %w", in.ID, ErrConflict)
		}
	}
	out, err := a.table.Insert(ctx, rec)
	if err != nil {
		return domain.Record{}, mapAppError("create record", err)
	}
	return out, nil
}

// UpdateFields applies a partial edit to one record.
func (a *AppServiceAdapter) UpdateFields(ctx context.Context, in UpdateFieldsRequest) (domain.Record, error) {
	if err := a.ready(); err != nil {
		return domain.Record{}, err
	}
	edits, err := parseFieldEdits(in.Fields)
	if err != nil {
		return domain.Record{}, err
	}
	ctx, err = a.withActor(ctx, in.ActorInput)
	if err != nil {
		return domain.Record{}, err
	}
	out, err := a.table.UpdateFields(ctx, in.ID, edits...)
	if err != nil {
		return domain.Record{}, mapAppError("update record", err)
	}
	return out, nil
}

// DeleteRecords removes records and reports which ones existed.
func (a *AppServiceAdapter) DeleteRecords(ctx context.Context, in DeleteRecordsRequest) (DeleteRecordsResponse, error) {
	if err := a.ready(); err != nil {
		return DeleteRecordsResponse{}, err
	}
	if len(in.IDs) == 0 {
		return DeleteRecordsResponse{}, fmt.Errorf("delete records: ids are required: %w", ErrInvalidRequest)
	}
	ctx, err := a.withActor(ctx, in.ActorInput)
	if err != nil {
		return DeleteRecordsResponse{}, err
	}
	removed, err := a.table.Remove(ctx, in.IDs...)
	if err != nil {
		return DeleteRecordsResponse{}, mapAppError("delete records", err)
	}
	if removed == nil {
		removed = []int{}
	}
	return DeleteRecordsResponse{Removed: removed}, nil
}

// BulkEdit applies the same edits to every listed record atomically.
func (a *AppServiceAdapter) BulkEdit(ctx context.Context, in BulkEditRequest) ([]domain.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if len(in.IDs) == 0 {
		return nil, fmt.Errorf("bulk edit: ids are required: %w", ErrInvalidRequest)
	}
	edits, err := parseFieldEdits(in.Fields)
	if err != nil {
		return nil, err
	}
	ctx, err = a.withActor(ctx, in.ActorInput)
	if err != nil {
		return nil, err
	}
	out, err := a.table.UpdateMany(ctx, in.IDs, edits...)
	if err != nil {
		return nil, mapAppError("bulk edit", err)
	}
	return out, nil
}

// Reorder replaces the canonical order.
func (a *AppServiceAdapter) Reorder(ctx context.Context, in ReorderRequest) (OrderResponse, error) {
	if err := a.ready(); err != nil {
		return OrderResponse{}, err
	}
	ctx, err := a.withActor(ctx, in.ActorInput)
	if err != nil {
		return OrderResponse{}, err
	}
	if err := a.table.Reorder(ctx, in.Order); err != nil {
		return OrderResponse{}, mapAppError("reorder", err)
	}
	return OrderResponse{Order: a.table.IDs()}, nil
}

// MoveRecord moves one record to a canonical index.
func (a *AppServiceAdapter) MoveRecord(ctx context.Context, in MoveRecordRequest) (OrderResponse, error) {
	if err := a.ready(); err != nil {
		return OrderResponse{}, err
	}
	ctx, err := a.withActor(ctx, in.ActorInput)
	if err != nil {
		return OrderResponse{}, err
	}
	order, err := a.table.Move(ctx, in.ID, in.ToIndex)
	if err != nil {
		return OrderResponse{}, mapAppError("move record", err)
	}
	return OrderResponse{Order: order}, nil
}

// Facets lists distinct values of one column.
func (a *AppServiceAdapter) Facets(_ context.Context, rawField string) ([]FacetValue, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	field, err := domain.ParseField(rawField)
	if err != nil {
		return nil, mapAppError("facets", err)
	}
	facets := a.table.Facets(field)
	out := make([]FacetValue, 0, len(facets))
	for _, f := range facets {
		out = append(out, FacetValue{Value: f.Value, Count: f.Count})
	}
	return out, nil
}

// ListChanges returns the newest ledger entries first.
func (a *AppServiceAdapter) ListChanges(ctx context.Context, limit int) ([]ChangeEvent, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if a.changes == nil {
		return nil, fmt.Errorf("change feed is not configured: %w", ErrUnavailable)
	}
	if limit < 0 {
		return nil, fmt.Errorf("list changes: limit must not be negative: %w", ErrInvalidRequest)
	}
	events, err := a.changes.ListChangeEvents(ctx, limit)
	if err != nil {
		return nil, mapAppError("list changes", err)
	}
	out := make([]ChangeEvent, 0, len(events))
	for _, event := range events {
		fields := make([]string, 0, len(event.Fields))
		for _, f := range event.Fields {
			fields = append(fields, string(f))
		}
		ids := event.RecordIDs
		if ids == nil {
			ids = []int{}
		}
		out = append(out, ChangeEvent{
			Seq:        event.Seq,
			MutationID: event.MutationID,
			Op:         string(event.Op),
			RecordIDs:  ids,
			Fields:     fields,
			ActorID:    event.ActorID,
			ActorType:  string(event.ActorType),
			OccurredAt: event.OccurredAt,
		})
	}
	return out, nil
}

// ready reports whether the adapter has a table.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.table == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// withActor attaches request attribution, falling back to the adapter default.
func (a *AppServiceAdapter) withActor(ctx context.Context, in ActorInput) (context.Context, error) {
	actor := a.defaultActor
	if id := strings.TrimSpace(in.ActorID); id != "" {
		actor.ActorID = id
	}
	if raw := strings.TrimSpace(in.ActorType); raw != "" {
		actorType, err := parseActorType(raw)
		if err != nil {
			return ctx, err
		}
		actor.ActorType = actorType
	}
	if strings.TrimSpace(actor.ActorID) == "" {
		return ctx, nil
	}
	return app.WithMutationActor(ctx, actor), nil
}

// parseActorType validates one transport actor_type value.
func parseActorType(raw string) (domain.ActorType, error) {
	switch actorType := domain.ActorType(strings.ToLower(strings.TrimSpace(raw))); actorType {
	case domain.ActorTypeUser, domain.ActorTypeAgent, domain.ActorTypeSystem:
		return actorType, nil
	default:
		return "", fmt.Errorf("actor_type %q must be user, agent, or system: %w", raw, ErrInvalidRequest)
	}
}

// parseFieldEdits converts a transport field map into typed edits in field order.
func parseFieldEdits(fields map[string]string) ([]domain.Edit, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("fields are required: %w", ErrInvalidRequest)
	}
	byField := make(map[domain.Field]domain.Edit, len(fields))
	for rawField, rawValue := range fields {
		field, err := domain.ParseField(rawField)
		if err != nil {
			return nil, mapAppError("parse fields", err)
		}
		if _, dup := byField[field]; dup {
			return nil, fmt.Errorf("field %q given twice: %w", field, ErrInvalidRequest)
		}
		edit, err := domain.ParseEdit(field, rawValue)
		if err != nil {
			return nil, mapAppError("parse fields", err)
		}
		byField[field] = edit
	}
	edits := make([]domain.Edit, 0, len(byField))
	for _, field := range domain.AllFields() {
		if edit, ok := byField[field]; ok {
			edits = append(edits, edit)
		}
	}
	return edits, nil
}

// viewStateFromRequest translates query parameters into a view state.
func viewStateFromRequest(in ViewRequest) (app.ViewState, error) {
	vs := app.NewViewState()
	if sortRaw := strings.TrimSpace(in.Sort); sortRaw != "" {
		field, err := domain.ParseField(sortRaw)
		if err != nil {
			return app.ViewState{}, mapAppError("parse sort", err)
		}
		dir, err := app.ParseSortDirection(in.Dir)
		if err != nil {
			return app.ViewState{}, mapAppError("parse sort", err)
		}
		vs.SortKey = field
		vs.SortDirection = dir
	}
	for rawField, values := range in.Filters {
		field, err := domain.ParseField(rawField)
		if err != nil {
			return app.ViewState{}, mapAppError("parse filter", err)
		}
		vs = vs.WithFilter(field, values...)
	}
	if in.PageSize < 0 || in.Page < 0 {
		return app.ViewState{}, fmt.Errorf("page and page_size must not be negative: %w", ErrInvalidRequest)
	}
	if in.PageSize > app.MaxPageSize {
		return app.ViewState{}, fmt.Errorf("page_size must be at most %d: %w", app.MaxPageSize, ErrInvalidRequest)
	}
	if in.PageSize > 0 {
		vs = vs.WithPageSize(in.PageSize)
	}
	return vs.WithSearch(in.Search).WithPage(in.Page), nil
}

// computeStateHash returns a deterministic digest of the canonical table.
func computeStateHash(records []domain.Record) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode state hash payload: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// mapAppError maps app-layer errors into transport-level sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, domain.ErrInvariant),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, app.ErrInvalidState):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
