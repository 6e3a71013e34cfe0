package api

import (
	"net/http"
	"strconv"
)

const (
	defaultHistoryLimit = 100
	defaultSeriesLimit  = 300
)

// SessionHandler serves the session summary, history and series.
type SessionHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies, maxLimit int) *SessionHandler {
	return &SessionHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetSession handles GET /session requests.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot(r.Context()))
}

// HandleReset handles POST /session/reset requests.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Reset(r.Context()))
}

// HandleGetHistory handles GET /history?limit=N requests.
func (h *SessionHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, code, err := h.limit(r, op, defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, err)
		return
	}
	records, err := h.deps.History(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGetSeries handles GET /series?limit=N requests.
func (h *SessionHandler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_series"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, code, err := h.limit(r, op, defaultSeriesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, err)
		return
	}
	series, err := h.deps.Series(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// limit parses ?limit=N. Absent means def; it must be within [1, maxLimit].
func (h *SessionHandler) limit(r *http.Request, op string, def int) (int, string, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(def, h.maxLimit), "", nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "bad_request", NewKind(op, ErrBadRequest)
	}
	if n > h.maxLimit {
		return 0, "limit_exceeded", NewKind(op, ErrBadRequest)
	}
	return n, "", nil
}
