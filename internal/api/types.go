package api

import (
	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ValidationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	auth.LoginResult
	Redirect string `json:"redirect,omitempty"`
}

type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *auth.Identity `json:"user,omitempty"`
}

// IncidentView is an incident with its patient's display name resolved.
type IncidentView struct {
	clinic.Incident
	PatientName string `json:"patientName"`
}

type PatientDetailResponse struct {
	clinic.Patient
	Incidents []IncidentView        `json:"incidents"`
	Summary   clinic.TreatmentStats `json:"summary"`
}

type DashboardResponse struct {
	TotalPatients        int                           `json:"totalPatients"`
	TotalIncidents       int                           `json:"totalIncidents"`
	TotalRevenue         float64                       `json:"totalRevenue"`
	TreatmentStats       clinic.TreatmentStats         `json:"treatmentStats"`
	UpcomingAppointments []IncidentView                `json:"upcomingAppointments"`
	TopPatients          []clinic.PatientIncidentCount `json:"topPatients"`
}

type CalendarDayView struct {
	Date         string         `json:"date"`
	Today        bool           `json:"today"`
	Past         bool           `json:"past"`
	Appointments []IncidentView `json:"appointments"`
}

type CalendarResponse struct {
	Month                string            `json:"month"`
	Days                 []CalendarDayView `json:"days"`
	SelectedDate         string            `json:"selectedDate"`
	SelectedAppointments []IncidentView    `json:"selectedAppointments"`
}

type ProfileResponse struct {
	User      auth.Identity         `json:"user"`
	Patient   clinic.Patient        `json:"patient"`
	Summary   clinic.TreatmentStats `json:"summary"`
	Incidents []clinic.Incident     `json:"incidents"`
}

type AppointmentsResponse struct {
	Filter       clinic.AppointmentFilter `json:"filter"`
	Appointments []clinic.Incident        `json:"appointments"`
	Summary      clinic.TreatmentStats    `json:"summary"`
}
