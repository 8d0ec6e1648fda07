package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(incidents []Incident) []string {
	out := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, inc.Title)
	}
	return out
}

func TestUpcomingAppointments(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddIncident(ctx, sampleIncident("PAT-1", "past", baseTime.Add(-time.Hour)))
	s.AddIncident(ctx, sampleIncident("PAT-1", "now", baseTime))
	s.AddIncident(ctx, sampleIncident("PAT-1", "third", baseTime.Add(72*time.Hour)))
	s.AddIncident(ctx, sampleIncident("PAT-1", "first", baseTime.Add(time.Hour)))
	s.AddIncident(ctx, sampleIncident("PAT-1", "second", baseTime.Add(24*time.Hour)))

	assert.Equal(t, []string{"first", "second"}, ids(s.UpcomingAppointments(2)))
	assert.Equal(t, []string{"first", "second", "third"}, ids(s.UpcomingAppointments(0)))
}

func TestUpcomingAppointments_StableForEqualDates(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	at := baseTime.Add(time.Hour)
	s.AddIncident(ctx, sampleIncident("PAT-1", "a", at))
	s.AddIncident(ctx, sampleIncident("PAT-1", "b", at))
	s.AddIncident(ctx, sampleIncident("PAT-1", "c", at))

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.UpcomingAppointments(10)))
}

func TestPatientsByIncidentCount(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	a := s.AddPatient(ctx, samplePatient("Ann"))
	b := s.AddPatient(ctx, samplePatient("Ben"))
	c := s.AddPatient(ctx, samplePatient("Cal"))
	d := s.AddPatient(ctx, samplePatient("Dee"))

	for i := 0; i < 3; i++ {
		s.AddIncident(ctx, sampleIncident(c.ID, "x", baseTime))
	}
	s.AddIncident(ctx, sampleIncident(b.ID, "x", baseTime))
	s.AddIncident(ctx, sampleIncident(d.ID, "x", baseTime))
	s.AddIncident(ctx, sampleIncident("PAT-ghost", "x", baseTime))

	ranked := s.PatientsByIncidentCount(3)
	require.Len(t, ranked, 3)
	assert.Equal(t, c.ID, ranked[0].ID)
	assert.Equal(t, 3, ranked[0].IncidentCount)
	assert.Equal(t, b.ID, ranked[1].ID, "ties keep store order")
	assert.Equal(t, d.ID, ranked[2].ID)

	all := s.PatientsByIncidentCount(0)
	require.Len(t, all, 4)
	assert.Equal(t, a.ID, all[3].ID)
	assert.Zero(t, all[3].IncidentCount)
}

func TestTotalRevenue(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	add := func(status IncidentStatus, cost *float64) {
		in := sampleIncident("PAT-1", "x", baseTime)
		in.Status = status
		in.Cost = cost
		s.AddIncident(ctx, in)
	}
	add(StatusCompleted, ptr(100.0))
	add(StatusCompleted, ptr(0.0))
	add(StatusPending, ptr(50.0))
	add(StatusCompleted, nil)

	assert.Equal(t, 100.0, s.TotalRevenue())
}

func TestTreatmentStats(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	for _, st := range []IncidentStatus{StatusPending, StatusCompleted, StatusPending, "cancelled"} {
		in := sampleIncident("PAT-1", "x", baseTime)
		in.Status = st
		s.AddIncident(ctx, in)
	}
	in := sampleIncident("PAT-2", "x", baseTime)
	in.Status = StatusCompleted
	s.AddIncident(ctx, in)

	assert.Equal(t, TreatmentStats{Pending: 2, Completed: 2}, s.TreatmentStats())
	assert.Equal(t, TreatmentStats{Pending: 2, Completed: 1}, s.PatientSummary("PAT-1"))
}

func TestSearchPatients(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddPatient(ctx, PatientInput{FullName: "Ada Lovelace", Email: "ada@example.com", ContactNumber: "555-0101"})
	s.AddPatient(ctx, PatientInput{FullName: "Grace Hopper", Email: "grace@navy.mil", ContactNumber: "555-0202"})

	assert.Len(t, s.SearchPatients(""), 2)
	assert.Len(t, s.SearchPatients("LOVE"), 1)
	assert.Len(t, s.SearchPatients("navy"), 1)
	assert.Len(t, s.SearchPatients("0202"), 1)
	assert.Empty(t, s.SearchPatients("turing"))
}

func TestFilterIncidents(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ada := s.AddPatient(ctx, samplePatient("Ada Lovelace"))
	s.AddIncident(ctx, sampleIncident(ada.ID, "Cleaning", baseTime))
	done := sampleIncident(ada.ID, "Crown", baseTime)
	done.Status = StatusCompleted
	s.AddIncident(ctx, done)
	s.AddIncident(ctx, sampleIncident("PAT-ghost", "Whitening", baseTime))

	assert.Len(t, s.FilterIncidents("", "all"), 3)
	assert.Len(t, s.FilterIncidents("lovelace", ""), 2)
	assert.Equal(t, []string{"Crown"}, ids(s.FilterIncidents("ada", StatusCompleted)))
	assert.Equal(t, []string{"Whitening"}, ids(s.FilterIncidents("whiten", "all")))
	assert.Empty(t, s.FilterIncidents("", "cancelled"))
}

func TestPatientAppointments(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddIncident(ctx, sampleIncident("PAT-1", "old pending", baseTime.Add(-48*time.Hour)))
	s.AddIncident(ctx, sampleIncident("PAT-1", "soon", baseTime.Add(time.Hour)))
	later := sampleIncident("PAT-1", "later done", baseTime.Add(96*time.Hour))
	later.Status = StatusCompleted
	s.AddIncident(ctx, later)
	s.AddIncident(ctx, sampleIncident("PAT-2", "someone else", baseTime.Add(time.Hour)))

	assert.Equal(t, []string{"later done", "soon", "old pending"}, ids(s.PatientAppointments("PAT-1", FilterAll)))
	assert.Equal(t, []string{"soon"}, ids(s.PatientAppointments("PAT-1", FilterUpcoming)))
	assert.Equal(t, []string{"later done"}, ids(s.PatientAppointments("PAT-1", FilterCompleted)))
	assert.Equal(t, []string{"soon", "old pending"}, ids(s.PatientAppointments("PAT-1", FilterPending)))
}

func TestCalendar(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddIncident(ctx, sampleIncident("PAT-1", "morning", time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)))
	s.AddIncident(ctx, sampleIncident("PAT-1", "evening", time.Date(2026, 3, 12, 19, 30, 0, 0, time.UTC)))
	s.AddIncident(ctx, sampleIncident("PAT-1", "april", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)))

	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"morning", "evening"}, ids(s.AppointmentsOn(day)))

	month := s.CalendarMonth(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	require.Len(t, month, 31)
	assert.True(t, month[9].Today)
	assert.True(t, month[8].Past)
	assert.False(t, month[9].Past)
	assert.Len(t, month[11].Appointments, 2)
	assert.Empty(t, month[0].Appointments)

	assert.Len(t, MonthDays(time.Date(2028, 2, 3, 0, 0, 0, 0, time.UTC)), 29)
}
