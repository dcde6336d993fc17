package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TaherBala2507/mini-crm/internal/crm"
)

// handleUploadAttachment accepts multipart/form-data with an "entity_type",
// "entity_id", and "file" part.
func (a *API) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(a.maxBody); err != nil {
		badRequest(w, r, fmt.Errorf("invalid multipart body: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, errors.New("file part is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, r, fmt.Errorf("read file: %w", err))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	att, err := a.attachments.Upload(r.Context(), actor, crm.UploadInput{
		EntityType:  r.FormValue("entity_type"),
		EntityID:    r.FormValue("entity_id"),
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

func (a *API) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	atts, err := a.attachments.ListForEntity(r.Context(), actor, q.Get("entity_type"), q.Get("entity_id"))
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": atts})
}

func (a *API) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	att, err := a.attachments.GetAttachment(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (a *API) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	att, data, err := a.attachments.OpenAttachment(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, _ = w.Write(data)
}

func (a *API) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.attachments.DeleteAttachment(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
