package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/crm"
)

type createLeadRequest struct {
	Name           string `json:"name"`
	Company        string `json:"company"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Source         string `json:"source"`
	OwnerUserID    string `json:"owner_user_id"`
	EstimatedValue int64  `json:"estimated_value"`
}

func (a *API) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	lead, err := a.leads.CreateLead(r.Context(), actor, crm.CreateLeadInput{
		Name:           req.Name,
		Company:        req.Company,
		Email:          req.Email,
		Phone:          req.Phone,
		Source:         req.Source,
		OwnerUserID:    req.OwnerUserID,
		EstimatedValue: req.EstimatedValue,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (a *API) handleListLeads(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := crm.LeadFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Source: q.Get("source"),
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
	}
	leads, total, err := a.leads.ListLeads(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: leads, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}

func (a *API) handleGetLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	lead, err := a.leads.GetLead(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type updateLeadRequest struct {
	Name           *string `json:"name"`
	Company        *string `json:"company"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Source         *string `json:"source"`
	Status         *string `json:"status"`
	OwnerUserID    *string `json:"owner_user_id"`
	EstimatedValue *int64  `json:"estimated_value"`
}

func (a *API) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	lead, err := a.leads.UpdateLead(r.Context(), actor, mux.Vars(r)["id"], crm.UpdateLeadInput{
		Name:           req.Name,
		Company:        req.Company,
		Email:          req.Email,
		Phone:          req.Phone,
		Source:         req.Source,
		Status:         req.Status,
		OwnerUserID:    req.OwnerUserID,
		EstimatedValue: req.EstimatedValue,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (a *API) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.leads.DeleteLead(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
