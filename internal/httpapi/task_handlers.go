package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/crm"
)

type createTaskRequest struct {
	ProjectID      string     `json:"project_id"`
	LeadID         string     `json:"lead_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	AssigneeUserID string     `json:"assignee_user_id"`
	DueAt          *time.Time `json:"due_at"`
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	task, err := a.tasks.CreateTask(r.Context(), actor, crm.CreateTaskInput{
		ProjectID:      req.ProjectID,
		LeadID:         req.LeadID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		AssigneeUserID: req.AssigneeUserID,
		DueAt:          req.DueAt,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := crm.TaskFilter{
		ProjectID:  q.Get("project_id"),
		LeadID:     q.Get("lead_id"),
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		AssigneeID: q.Get("assignee_id"),
		Page:       queryInt(q.Get("page")),
		Limit:      queryInt(q.Get("limit")),
	}
	tasks, total, err := a.tasks.ListTasks(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: tasks, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	task, err := a.tasks.GetTask(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type updateTaskRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	Priority       *string    `json:"priority"`
	AssigneeUserID *string    `json:"assignee_user_id"`
	DueAt          *time.Time `json:"due_at"`
	ClearDueAt     bool       `json:"clear_due_at"`
}

func (a *API) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	task, err := a.tasks.UpdateTask(r.Context(), actor, mux.Vars(r)["id"], crm.UpdateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssigneeUserID: req.AssigneeUserID,
		DueAt:          req.DueAt,
		ClearDueAt:     req.ClearDueAt,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.tasks.DeleteTask(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
