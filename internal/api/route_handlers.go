package api

import (
	"net/http"

	"github.com/neexbeast/geoplaces/internal/route"
)

type createRouteRequest struct {
	Name   string      `json:"name" validate:"required,max=255"`
	Points [][]float64 `json:"points" validate:"required"`
}

// CreateRoute handles POST /routes for the authenticated user.
func (h *Handlers) CreateRoute(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	var req createRouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	line, err := route.NewLine(req.Points)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	rt, err := h.routes.Create(r.Context(), u.ID, req.Name, line)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// ListRoutes handles GET /routes. Only the caller's routes are returned.
func (h *Handlers) ListRoutes(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	limit, err := intParam(r, "limit", route.DefaultLimit, 1, route.MaxLimit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0, maxOffset)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	rs, err := h.routes.ListByUser(r.Context(), u.ID, limit, offset)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}
