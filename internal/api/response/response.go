// Package response writes the explainer API's JSON envelopes: {"data": ...}
// on success and {"error": {"code", "message", "details"}} on failure.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// errorBody carries a stable machine code (JOB_NOT_FOUND, INVALID_QUALITY,
// ...) next to a human message.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PaginationMeta describes one page of a job listing.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

// JSON writes data with 200.
func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// Accepted writes data with 202, used for render jobs that were queued
// remotely but have not finished.
func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, envelope{Data: data})
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

// Page writes the 1-based page of items holding at most limit entries. A
// page past the end yields an empty list with the full total.
func Page[T any](w http.ResponseWriter, items []T, page, limit int) {
	total := len(items)
	start := min(max(page-1, 0)*limit, total)
	end := min(start+limit, total)
	Collection(w, items[start:end], PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: end < total,
	})
}

// NoContent writes a bare 204, as for a deleted job.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "status", status, "error", err)
	}
}
