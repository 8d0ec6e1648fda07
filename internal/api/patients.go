package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.SearchPatients(r.URL.Query().Get("search")))
}

func (h *handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	var in clinic.PatientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	if err := clinic.ValidatePatient(in, h.store.Now()); err != nil {
		writeValidation(w, err)
		return
	}

	p := h.store.AddPatient(r.Context(), in)
	w.Header().Set("Location", "/patients/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Patient(chi.URLParam(r, "id"))
	if !ok {
		writePatientNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, PatientDetailResponse{
		Patient:   p,
		Incidents: h.views(h.store.PatientIncidents(p.ID)),
		Summary:   h.store.PatientSummary(p.ID),
	})
}

func (h *handlers) updatePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch clinic.PatientPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	updated, err := h.store.CheckedUpdatePatient(r.Context(), id, patch, func(current clinic.Patient) error {
		return clinic.ValidatePatientPatch(current, patch, h.store.Now())
	})
	if errors.Is(err, clinic.ErrPatientNotFound) {
		writePatientNotFound(w)
		return
	}
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deletePatient removes the patient and its incidents, then purges the
// blobs those incidents referenced.
func (h *handlers) deletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	owned := h.store.PatientIncidents(id)

	if !h.store.DeletePatient(r.Context(), id) {
		writePatientNotFound(w)
		return
	}
	for _, inc := range owned {
		h.files.Purge(r.Context(), inc.Files)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listPatientIncidents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Patient(id); !ok {
		writePatientNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, h.views(h.store.PatientIncidents(id)))
}

func writePatientNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "patient_not_found", "patient not found")
}

// views resolves patient names for a list of incidents.
func (h *handlers) views(incidents []clinic.Incident) []IncidentView {
	names := make(map[string]string)
	for _, p := range h.store.Patients() {
		names[p.ID] = p.FullName
	}
	out := make([]IncidentView, 0, len(incidents))
	for _, inc := range incidents {
		name, ok := names[inc.PatientID]
		if !ok {
			name = clinic.UnknownPatientName
		}
		out = append(out, IncidentView{Incident: inc, PatientName: name})
	}
	return out
}
