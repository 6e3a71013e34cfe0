package api

import (
	"net/http"
)

// dashboardHandler points the legacy /dashboard path at the embedded site.
type dashboardHandler struct {
	target string
}

func newDashboardHandler(target string) *dashboardHandler {
	return &dashboardHandler{target: target}
}

// HandleDashboard handles GET /dashboard requests.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.target, http.StatusFound)
}
