package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/crm"
)

type createNoteRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Body       string `json:"body"`
}

func (a *API) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	note, err := a.notes.CreateNote(r.Context(), actor, req.EntityType, req.EntityID, req.Body)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := crm.NoteFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		AuthorID:   q.Get("author_id"),
		Page:       queryInt(q.Get("page")),
		Limit:      queryInt(q.Get("limit")),
	}
	notes, total, err := a.notes.ListNotes(r.Context(), actor, f)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: notes, Total: total, Page: pageOr1(f.Page), Limit: limitOr20(f.Limit)})
}

type updateNoteRequest struct {
	Body string `json:"body"`
}

func (a *API) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	note, err := a.notes.UpdateNote(r.Context(), actor, mux.Vars(r)["id"], req.Body)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (a *API) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.notes.DeleteNote(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
