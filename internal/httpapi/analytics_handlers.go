package httpapi

import (
	"net/http"

	"github.com/TaherBala2507/mini-crm/internal/audit"
)

func (a *API) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	overview, err := a.analytics.Overview(r.Context(), actor)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
		Page:       queryInt(q.Get("page")),
		Limit:      queryInt(q.Get("limit")),
	}
	entries, total, err := a.auth.ListAuditLog(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: entries, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}
