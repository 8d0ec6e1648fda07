package api

import (
	"net/http"
	"time"

	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

const monthLayout = "2006-01"

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DashboardResponse{
		TotalPatients:        len(h.store.Patients()),
		TotalIncidents:       len(h.store.Incidents()),
		TotalRevenue:         h.store.TotalRevenue(),
		TreatmentStats:       h.store.TreatmentStats(),
		UpcomingAppointments: h.views(h.store.UpcomingAppointments(clinic.DefaultUpcomingLimit)),
		TopPatients:          h.store.PatientsByIncidentCount(clinic.DefaultTopPatientsLimit),
	})
}

// calendar lays out ?month=YYYY-MM and lists the appointments of
// ?date=YYYY-MM-DD. Both default to today; a date alone picks its month.
func (h *handlers) calendar(w http.ResponseWriter, r *http.Request) {
	now := h.store.Now()
	loc := now.Location()
	q := r.URL.Query()

	selected := now
	if raw := q.Get("date"); raw != "" {
		d, err := time.ParseInLocation(clinic.DateLayout, raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		selected = d
	}

	month := selected
	if raw := q.Get("month"); raw != "" {
		m, err := time.ParseInLocation(monthLayout, raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be YYYY-MM")
			return
		}
		month = m
	}

	days := h.store.CalendarMonth(month)
	out := CalendarResponse{
		Month:                month.Format(monthLayout),
		Days:                 make([]CalendarDayView, 0, len(days)),
		SelectedDate:         selected.Format(clinic.DateLayout),
		SelectedAppointments: h.views(h.store.AppointmentsOn(selected)),
	}
	for _, d := range days {
		out.Days = append(out.Days, CalendarDayView{
			Date:         d.Date.Format(clinic.DateLayout),
			Today:        d.Today,
			Past:         d.Past,
			Appointments: h.views(d.Appointments),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) myProfile(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())
	p, ok := h.store.Patient(id.PatientID)
	if !ok {
		writeError(w, http.StatusNotFound, "patient_record_not_found", "we couldn't find your patient record, please contact the clinic")
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		User:      id,
		Patient:   p,
		Summary:   h.store.PatientSummary(p.ID),
		Incidents: h.store.PatientIncidents(p.ID),
	})
}

func (h *handlers) myAppointments(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	filter := clinic.AppointmentFilter(r.URL.Query().Get("filter"))
	switch filter {
	case "":
		filter = clinic.FilterAll
	case clinic.FilterAll, clinic.FilterUpcoming, clinic.FilterCompleted, clinic.FilterPending:
	default:
		writeError(w, http.StatusBadRequest, "invalid_filter", "filter must be all, upcoming, completed or pending")
		return
	}

	writeJSON(w, http.StatusOK, AppointmentsResponse{
		Filter:       filter,
		Appointments: h.store.PatientAppointments(id.PatientID, filter),
		Summary:      h.store.PatientSummary(id.PatientID),
	})
}
