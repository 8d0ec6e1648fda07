package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/dental-clinic-records/internal/attachment"
	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

const multipartMemory = 8 << 20

func (h *handlers) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := clinic.IncidentStatus(q.Get("status"))
	switch status {
	case "", "all", clinic.StatusPending, clinic.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be all, pending or completed")
		return
	}
	writeJSON(w, http.StatusOK, h.views(h.store.FilterIncidents(q.Get("search"), status)))
}

func (h *handlers) createIncident(w http.ResponseWriter, r *http.Request) {
	var in clinic.IncidentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	if err := clinic.ValidateIncident(in); err != nil {
		writeValidation(w, err)
		return
	}

	inc := h.store.AddIncident(r.Context(), in)
	w.Header().Set("Location", "/incidents/"+inc.ID)
	writeJSON(w, http.StatusCreated, h.view(inc))
}

func (h *handlers) getIncident(w http.ResponseWriter, r *http.Request) {
	inc, ok := h.store.Incident(chi.URLParam(r, "id"))
	if !ok {
		writeIncidentNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, h.view(inc))
}

func (h *handlers) updateIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch clinic.IncidentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	before, updated, err := h.store.CheckedUpdateIncident(r.Context(), id, patch, func(current clinic.Incident) error {
		return clinic.ValidateIncidentPatch(current, patch)
	})
	if errors.Is(err, clinic.ErrIncidentNotFound) {
		writeIncidentNotFound(w)
		return
	}
	if err != nil {
		writeValidation(w, err)
		return
	}
	h.purgeDropped(r, before.Files, updated.Files)
	writeJSON(w, http.StatusOK, h.view(updated))
}

func (h *handlers) deleteIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, ok := h.store.Incident(id)
	if !ok || !h.store.DeleteIncident(r.Context(), id) {
		writeIncidentNotFound(w)
		return
	}
	h.files.Purge(r.Context(), existing.Files)
	w.WriteHeader(http.StatusNoContent)
}

// uploadFiles stores every part named "files" (or "file") of a multipart
// body and appends their descriptors to the incident.
func (h *handlers) uploadFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, ok := h.store.Incident(id)
	if !ok {
		writeIncidentNotFound(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*clinic.MaxIncidentFiles+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "upload exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes per file")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var parts []*multipart.FileHeader
	parts = append(parts, r.MultipartForm.File["files"]...)
	parts = append(parts, r.MultipartForm.File["file"]...)
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no_files", `expected multipart parts named "files"`)
		return
	}
	if len(existing.Files)+len(parts) > clinic.MaxIncidentFiles {
		writeTooManyFiles(w)
		return
	}

	added := make([]clinic.FileAttachment, 0, len(parts))
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			h.files.Purge(r.Context(), added)
			writeError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
			return
		}
		desc, err := h.files.Upload(r.Context(), id, fh.Filename, fh.Header.Get("Content-Type"), f)
		_ = f.Close()
		if err != nil {
			h.files.Purge(r.Context(), added)
			if errors.Is(err, attachment.ErrTooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large", fh.Filename+" exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes")
				return
			}
			h.log.ErrorContext(r.Context(), "attachment upload failed", slog.String("incident_id", id), slog.Any("err", err))
			writeError(w, http.StatusInternalServerError, "upload_failed", "could not store attachment")
			return
		}
		added = append(added, desc)
	}

	// another upload may have landed while the blobs were written
	updated, err := h.store.AppendIncidentFiles(r.Context(), id, added)
	if err != nil {
		h.files.Purge(r.Context(), added)
		if errors.Is(err, clinic.ErrTooManyFiles) {
			writeTooManyFiles(w)
			return
		}
		writeIncidentNotFound(w)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(updated))
}

// removeFile detaches the file whose blob key is given by ?key= and deletes
// its blob.
func (h *handlers) removeFile(w http.ResponseWriter, r *http.Request) {
	updated, removed, err := h.store.DetachIncidentFile(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("key"))
	switch {
	case errors.Is(err, clinic.ErrIncidentNotFound):
		writeIncidentNotFound(w)
		return
	case errors.Is(err, clinic.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file_not_found", "incident has no attachment with that key")
		return
	}
	h.files.Purge(r.Context(), []clinic.FileAttachment{removed})
	writeJSON(w, http.StatusOK, h.view(updated))
}

func (h *handlers) downloadFile(w http.ResponseWriter, r *http.Request) {
	h.serveAttachment(w, r, chi.URLParam(r, "*"), func(clinic.Incident) bool { return true })
}

// downloadOwnFile serves only attachments of the caller's own incidents.
func (h *handlers) downloadOwnFile(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())
	h.serveAttachment(w, r, chi.URLParam(r, "*"), func(inc clinic.Incident) bool {
		return id.PatientID != "" && inc.PatientID == id.PatientID
	})
}

func (h *handlers) serveAttachment(w http.ResponseWriter, r *http.Request, key string, visible func(clinic.Incident) bool) {
	desc, found := clinic.FileAttachment{}, false
	for _, inc := range h.store.Incidents() {
		if !visible(inc) {
			continue
		}
		for _, f := range inc.Files {
			if key != "" && f.Key == key {
				desc, found = f, true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "file_not_found", "attachment not found")
		return
	}

	body, contentType, err := h.files.Open(r.Context(), key)
	if errors.Is(err, attachment.ErrBlobNotFound) {
		writeError(w, http.StatusNotFound, "file_not_found", "attachment content is missing")
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "attachment open failed", slog.String("key", key), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not read attachment")
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = desc.Type
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": desc.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.WarnContext(r.Context(), "attachment stream interrupted", slog.String("key", key), slog.Any("err", err))
	}
}

// purgeDropped deletes the blobs of attachments present in before but not
// in after.
func (h *handlers) purgeDropped(r *http.Request, before, after []clinic.FileAttachment) {
	kept := make(map[string]bool, len(after))
	for _, f := range after {
		kept[f.Key] = true
	}
	var dropped []clinic.FileAttachment
	for _, f := range before {
		if !kept[f.Key] {
			dropped = append(dropped, f)
		}
	}
	if len(dropped) > 0 {
		h.files.Purge(r.Context(), dropped)
	}
}

func (h *handlers) view(inc clinic.Incident) IncidentView {
	return IncidentView{Incident: inc, PatientName: h.store.PatientName(inc.PatientID)}
}

func writeIncidentNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "incident_not_found", "incident not found")
}

func writeTooManyFiles(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "too_many_files", "Maximum "+strconv.Itoa(clinic.MaxIncidentFiles)+" files allowed")
}
