package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/auth"
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	role, err := a.roles.CreateRole(r.Context(), actor, auth.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := auth.RoleFilter{
		Search:        q.Get("search"),
		ExcludeSystem: q.Get("exclude_system") == "true",
		SortBy:        q.Get("sort_by"),
		SortDesc:      q.Get("sort_order") == "desc",
		Page:          queryInt(q.Get("page")),
		Limit:         queryInt(q.Get("limit")),
	}
	roles, total, err := a.roles.ListRoles(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: roles, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	role, err := a.roles.GetRole(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

type updateRoleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	role, err := a.roles.UpdateRole(r.Context(), actor, mux.Vars(r)["id"], auth.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.roles.DeleteRole(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListPermissions returns the full catalog grouped by category so role
// editors can render it without hardcoding.
func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.principal(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": a.roles.AllPermissions(),
	})
}
