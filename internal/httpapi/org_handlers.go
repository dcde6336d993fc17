package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/auth"
)

func (a *API) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	org, err := a.auth.GetOrganization(r.Context(), actor)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

type updateOrgRequest struct {
	Name     *string        `json:"name"`
	Settings map[string]any `json:"settings"`
}

func (a *API) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateOrgRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	org, err := a.auth.UpdateOrganization(r.Context(), actor, auth.UpdateOrganizationInput{
		Name:     req.Name,
		Settings: req.Settings,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

type inviteUserRequest struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	RoleIDs []string `json:"role_ids"`
}

func (a *API) handleInviteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req inviteUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	user, verifyToken, err := a.auth.InviteUser(r.Context(), actor, auth.InviteUserInput{
		Name:    req.Name,
		Email:   req.Email,
		RoleIDs: req.RoleIDs,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":         user,
		"verify_token": verifyToken,
	})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := auth.UserFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		RoleID: q.Get("role_id"),
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
	}
	users, total, err := a.auth.ListUsers(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: users, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	user, err := a.auth.GetUser(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name    *string  `json:"name"`
	Status  *string  `json:"status"`
	RoleIDs []string `json:"role_ids"`
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	user, err := a.auth.UpdateUser(r.Context(), actor, mux.Vars(r)["id"], auth.UpdateUserInput{
		Name:    req.Name,
		Status:  req.Status,
		RoleIDs: req.RoleIDs,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.auth.DeactivateUser(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pageOr1(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func limitOr20(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
