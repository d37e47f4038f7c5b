// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/sectboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// filterQueryPrefix marks column filter query parameters, as in `filter.status=Done,In Progress`.
const filterQueryPrefix = "filter."

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	table common.TableService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the table service.
func NewHandler(table common.TableService) *Handler {
	return &Handler{table: table}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.table == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "table service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch {
	case path == "records":
		switch r.Method {
		case http.MethodGet:
			h.handleView(w, r)
		case http.MethodPost:
			h.handleCreateRecord(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case path == "records/bulk_delete":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleBulkDelete(w, r)
		return
	case path == "records/bulk_edit":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleBulkEdit(w, r)
		return
	case path == "order":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleReorder(w, r)
		return
	case path == "changes":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListChanges(w, r)
		return
	case strings.HasPrefix(path, "facets/"):
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleFacets(w, r, strings.TrimPrefix(path, "facets/"))
		return
	}

	id, action, ok := resolveRecordPath(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetRecord(w, r, id)
		case http.MethodPatch:
			h.handleUpdateRecord(w, r, id)
		case http.MethodDelete:
			h.handleDeleteRecord(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveRecord(w, r, id)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleView serves GET `/records`.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	req, err := viewRequestFromQuery(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	view, err := h.table.View(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCreateRecord serves POST `/records`.
func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req common.CreateRecordRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	rec, err := h.table.CreateRecord(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleGetRecord serves GET `/records/{id}`.
func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request, id int) {
	rec, err := h.table.GetRecord(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateRecord serves PATCH `/records/{id}`.
func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request, id int) {
	var req common.UpdateFieldsRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if req.ID != 0 && req.ID != id {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "body id does not match path id",
			Context: map[string]any{"path_id": id, "body_id": req.ID},
		})
		return
	}
	req.ID = id
	rec, err := h.table.UpdateFields(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord serves DELETE `/records/{id}`. Deleting a missing
// record succeeds with an empty removed list.
func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request, id int) {
	var actor common.ActorInput
	if err := decodeOptionalJSONBody(r.Context(), w, r, &actor); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.table.DeleteRecords(r.Context(), common.DeleteRecordsRequest{IDs: []int{id}, ActorInput: actor})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleMoveRecord serves POST `/records/{id}/move`.
func (h *Handler) handleMoveRecord(w http.ResponseWriter, r *http.Request, id int) {
	var req common.MoveRecordRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = id
	out, err := h.table.MoveRecord(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleBulkDelete serves POST `/records/bulk_delete`.
func (h *Handler) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req common.DeleteRecordsRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.table.DeleteRecords(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleBulkEdit serves POST `/records/bulk_edit`.
func (h *Handler) handleBulkEdit(w http.ResponseWriter, r *http.Request) {
	var req common.BulkEditRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	records, err := h.table.BulkEdit(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
	})
}

// handleReorder serves PUT `/order`.
func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req common.ReorderRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.table.Reorder(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleFacets serves GET `/facets/{field}`.
func (h *Handler) handleFacets(w http.ResponseWriter, r *http.Request, field string) {
	facets, err := h.table.Facets(r.Context(), field)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"field":  field,
		"values": facets,
	})
}

// handleListChanges serves GET `/changes`.
func (h *Handler) handleListChanges(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	events, err := h.table.ListChanges(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// viewRequestFromQuery parses search, sort, paging, and `filter.<field>` parameters.
func viewRequestFromQuery(r *http.Request) (common.ViewRequest, error) {
	query := r.URL.Query()
	page, err := intQuery(r, "page")
	if err != nil {
		return common.ViewRequest{}, err
	}
	pageSize, err := intQuery(r, "page_size")
	if err != nil {
		return common.ViewRequest{}, err
	}
	req := common.ViewRequest{
		Search:   strings.TrimSpace(query.Get("q")),
		Sort:     strings.TrimSpace(query.Get("sort")),
		Dir:      strings.TrimSpace(query.Get("dir")),
		Page:     page,
		PageSize: pageSize,
	}
	for key, raw := range query {
		if !strings.HasPrefix(key, filterQueryPrefix) {
			continue
		}
		field := strings.TrimPrefix(key, filterQueryPrefix)
		values := make([]string, 0, len(raw))
		for _, entry := range raw {
			for _, part := range strings.Split(entry, ",") {
				if part = strings.TrimSpace(part); part != "" {
					values = append(values, part)
				}
			}
		}
		if len(values) == 0 {
			continue
		}
		if req.Filters == nil {
			req.Filters = map[string][]string{}
		}
		req.Filters[field] = append(req.Filters[field], values...)
	}
	return req, nil
}

// intQuery parses one optional integer query parameter.
func intQuery(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, errors.Join(common.ErrInvalidRequest, err))
	}
	return v, nil
}

// resolveRecordPath parses `records/{id}` and `records/{id}/{action}`.
func resolveRecordPath(path string) (int, string, bool) {
	const prefix = "records/"
	if !strings.HasPrefix(path, prefix) {
		return 0, "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	rawID, action, _ := strings.Cut(rest, "/")
	if strings.Contains(action, "/") {
		return 0, "", false
	}
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, action, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Refetch /records and retry against the current order.",
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
