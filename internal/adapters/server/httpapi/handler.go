// Package httpapi provides the REST HTTP adapter for the nudge surfaces.
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

	"github.com/hylla/nudger/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	nudges common.NudgeService
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

// NewHandler constructs one HTTP API adapter over the nudge service.
func NewHandler(nudges common.NudgeService) *Handler {
	return &Handler{nudges: nudges}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.nudges == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "nudge service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "nudges":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListNudges(w, r)
		return
	case "summary":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleSummary(w, r)
		return
	case "refresh":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRefresh(w, r)
		return
	case "snoozes":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListSnoozes(w, r)
		return
	}

	id, action, ok := resolveNudgeAction(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	switch action {
	case "snooze":
		h.handleSnooze(w, r, id)
	case "dismiss":
		h.handleDismiss(w, r, id)
	}
}

// handleListNudges serves GET `/nudges`.
func (h *Handler) handleListNudges(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := common.ListNudgesRequest{
		Type:     strings.TrimSpace(query.Get("type")),
		Priority: strings.TrimSpace(query.Get("priority")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("limit %q is not an integer", raw),
			})
			return
		}
		req.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("refresh")); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("refresh %q is not a boolean", raw),
			})
			return
		}
		req.Refresh = refresh
	}
	list, err := h.nudges.ListNudges(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSummary serves GET `/summary`.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.nudges.Summary(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRefresh serves POST `/refresh`.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	list, err := h.nudges.Refresh(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleListSnoozes serves GET `/snoozes`.
func (h *Handler) handleListSnoozes(w http.ResponseWriter, r *http.Request) {
	snoozes, err := h.nudges.ListSnoozes(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snoozes": snoozes,
	})
}

// handleSnooze serves POST `/nudges/{id}/snooze`.
func (h *Handler) handleSnooze(w http.ResponseWriter, r *http.Request, id string) {
	var payload common.SnoozeRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if bodyID := strings.TrimSpace(payload.ID); bodyID != "" && bodyID != id {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "body id does not match path id",
			Context: map[string]any{"path_id": id, "body_id": bodyID},
		})
		return
	}
	payload.ID = id
	result, err := h.nudges.SnoozeNudge(r.Context(), payload)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDismiss serves POST `/nudges/{id}/dismiss`.
func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.nudges.DismissNudge(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveNudgeAction parses `/nudges/{id}/{snooze|dismiss}`.
func resolveNudgeAction(path string) (string, string, bool) {
	const prefix = "nudges/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 {
		return "", "", false
	}
	id := strings.TrimSpace(rest[:idx])
	action := rest[idx+1:]
	if id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	if action != "snooze" && action != "dismiss" {
		return "", "", false
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
			Hint:    "Durations accept 1h, 4h, tomorrow, next-week, or a Go duration such as 90m.",
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "request_canceled",
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

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
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
