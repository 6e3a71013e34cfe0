package api

import (
	"net/http"
	"strconv"
)

// FrameHandler serves the most recent camera frame.
type FrameHandler struct {
	deps Dependencies
}

// NewFrameHandler creates a new frame handler.
func NewFrameHandler(deps Dependencies) *FrameHandler {
	return &FrameHandler{deps: deps}
}

// HandleGetFrame handles GET /frame.jpg requests.
func (h *FrameHandler) HandleGetFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_frame"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	f, ok := h.deps.LatestFrame()
	if !ok || len(f.JPEG) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no_frame", NewKind(op, ErrNoFrame))
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.JPEG)
}
