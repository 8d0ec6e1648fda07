package clinic

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultUpcomingLimit    = 10
	DefaultTopPatientsLimit = 5
)

// PatientIncidents returns the incidents of one patient in store order.
func (s *Store) PatientIncidents(patientID string) []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterIncidents(func(inc Incident) bool { return inc.PatientID == patientID })
}

// UpcomingAppointments returns incidents scheduled strictly after now,
// earliest first, at most limit of them. Equal dates keep store order.
func (s *Store) UpcomingAppointments(limit int) []Incident {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	s.mu.RLock()
	now := s.now()
	upcoming := s.filterIncidents(func(inc Incident) bool { return inc.AppointmentDate.After(now) })
	s.mu.RUnlock()

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].AppointmentDate.Before(upcoming[j].AppointmentDate)
	})
	if len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// PatientsByIncidentCount ranks every patient by how many incidents
// reference it, highest first, at most limit of them. Ties keep store order.
func (s *Store) PatientsByIncidentCount(limit int) []PatientIncidentCount {
	if limit <= 0 {
		limit = DefaultTopPatientsLimit
	}
	s.mu.RLock()
	counts := make(map[string]int, len(s.patients))
	for _, inc := range s.incidents {
		counts[inc.PatientID]++
	}
	ranked := make([]PatientIncidentCount, 0, len(s.patients))
	for _, p := range s.patients {
		ranked = append(ranked, PatientIncidentCount{Patient: p, IncidentCount: counts[p.ID]})
	}
	s.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].IncidentCount > ranked[j].IncidentCount
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// TotalRevenue sums the cost of completed incidents. Incidents without a
// cost, or with a zero cost, are not revenue.
func (s *Store) TotalRevenue() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, inc := range s.incidents {
		if inc.Status == StatusCompleted && inc.Cost != 0 {
			total += inc.Cost
		}
	}
	return total
}

// TreatmentStats counts pending and completed incidents. Any other status
// is counted in neither.
func (s *Store) TreatmentStats() TreatmentStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tally(s.incidents)
}

// PatientSummary is TreatmentStats restricted to one patient.
func (s *Store) PatientSummary(patientID string) TreatmentStats {
	return tally(s.PatientIncidents(patientID))
}

func tally(incidents []Incident) TreatmentStats {
	var st TreatmentStats
	for _, inc := range incidents {
		switch inc.Status {
		case StatusPending:
			st.Pending++
		case StatusCompleted:
			st.Completed++
		}
	}
	return st
}

// PatientName returns the patient's full name, or UnknownPatientName when
// the id dangles.
func (s *Store) PatientName(id string) string {
	if p, ok := s.Patient(id); ok {
		return p.FullName
	}
	return UnknownPatientName
}

// SearchPatients matches term against full name and email ignoring case,
// and against the contact number as typed. An empty term matches everyone.
func (s *Store) SearchPatients(term string) []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(term)
	out := make([]Patient, 0, len(s.patients))
	for _, p := range s.patients {
		if strings.Contains(strings.ToLower(p.FullName), lower) ||
			strings.Contains(strings.ToLower(p.Email), lower) ||
			strings.Contains(p.ContactNumber, term) {
			out = append(out, p)
		}
	}
	return out
}

// FilterIncidents matches term against the owning patient's name, the title
// and the description ignoring case. Status "all" or "" matches any status.
func (s *Store) FilterIncidents(term string, status IncidentStatus) []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[string]string, len(s.patients))
	for _, p := range s.patients {
		names[p.ID] = strings.ToLower(p.FullName)
	}
	lower := strings.ToLower(term)
	return s.filterIncidents(func(inc Incident) bool {
		if status != "" && status != "all" && inc.Status != status {
			return false
		}
		name, known := names[inc.PatientID]
		return (known && strings.Contains(name, lower)) ||
			strings.Contains(strings.ToLower(inc.Title), lower) ||
			strings.Contains(strings.ToLower(inc.Description), lower)
	})
}

// PatientAppointments returns one patient's incidents narrowed by filter,
// newest appointment first. Upcoming means pending and not yet past.
func (s *Store) PatientAppointments(patientID string, filter AppointmentFilter) []Incident {
	s.mu.RLock()
	now := s.now()
	out := s.filterIncidents(func(inc Incident) bool {
		if inc.PatientID != patientID {
			return false
		}
		switch filter {
		case FilterUpcoming:
			return !inc.AppointmentDate.Before(now) && inc.Status == StatusPending
		case FilterCompleted:
			return inc.Status == StatusCompleted
		case FilterPending:
			return inc.Status == StatusPending
		default:
			return true
		}
	})
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppointmentDate.After(out[j].AppointmentDate)
	})
	return out
}

// AppointmentsOn returns incidents whose appointment falls on the same
// calendar day as day, in day's location.
func (s *Store) AppointmentsOn(day time.Time) []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterIncidents(func(inc Incident) bool {
		return SameDay(inc.AppointmentDate.In(day.Location()), day)
	})
}

type CalendarDay struct {
	Date         time.Time  `json:"date"`
	Today        bool       `json:"today"`
	Past         bool       `json:"past"`
	Appointments []Incident `json:"appointments"`
}

// CalendarMonth lays out every day of month's calendar month with its
// appointments.
func (s *Store) CalendarMonth(month time.Time) []CalendarDay {
	loc := month.Location()
	s.mu.RLock()
	now := s.now().In(loc)
	incidents := s.filterIncidents(func(Incident) bool { return true })
	s.mu.RUnlock()

	today := startOfDay(now)
	days := MonthDays(month)
	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		cd := CalendarDay{
			Date:         d,
			Today:        d.Equal(today),
			Past:         d.Before(today),
			Appointments: []Incident{},
		}
		for _, inc := range incidents {
			if SameDay(inc.AppointmentDate.In(loc), d) {
				cd.Appointments = append(cd.Appointments, inc)
			}
		}
		out = append(out, cd)
	}
	return out
}

// MonthDays returns midnight of every day in t's month, in t's location.
func MonthDays(t time.Time) []time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	var days []time.Time
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// filterIncidents copies the matching incidents. Callers hold the read lock.
func (s *Store) filterIncidents(keep func(Incident) bool) []Incident {
	out := make([]Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		if keep(inc) {
			out = append(out, cloneIncident(inc))
		}
	}
	return out
}
