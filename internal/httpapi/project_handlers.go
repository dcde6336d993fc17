package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/crm"
)

type createProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	project, err := a.projects.CreateProject(r.Context(), actor, crm.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		MemberIDs:   req.MemberIDs,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := crm.ProjectFilter{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		MemberID: q.Get("member_id"),
		Page:     queryInt(q.Get("page")),
		Limit:    queryInt(q.Get("limit")),
	}
	projects, total, err := a.projects.ListProjects(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: projects, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	project, err := a.projects.GetProject(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	MemberIDs   []string `json:"member_ids"`
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	project, err := a.projects.UpdateProject(r.Context(), actor, mux.Vars(r)["id"], crm.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		MemberIDs:   req.MemberIDs,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.projects.DeleteProject(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
