package clinic

import (
	"errors"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RolePatient Role = "patient"
)

type IncidentStatus string

const (
	StatusPending   IncidentStatus = "pending"
	StatusCompleted IncidentStatus = "completed"
)

// Id prefixes distinguish entity kinds.
const (
	PatientIDPrefix  = "PAT"
	IncidentIDPrefix = "INC"
)

// MaxIncidentFiles caps the attachments held by one incident.
const MaxIncidentFiles = 5

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrIncidentNotFound = errors.New("incident not found")
	ErrFileNotFound     = errors.New("attachment not found")
	ErrTooManyFiles     = errors.New("maximum 5 files allowed")
)

// UnknownPatientName is rendered for incidents whose patient no longer exists.
const UnknownPatientName = "Unknown Patient"

// User is a seeded account. Password is only ever present in the users
// collection, never in a session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	Role      Role   `json:"role"`
	PatientID string `json:"patientId,omitempty"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
}

type Patient struct {
	ID               string    `json:"id"`
	FullName         string    `json:"fullName"`
	DateOfBirth      string    `json:"dateOfBirth"` // YYYY-MM-DD
	ContactNumber    string    `json:"contactNumber"`
	Email            string    `json:"email"`
	HealthInfo       string    `json:"healthInfo,omitempty"`
	EmergencyContact string    `json:"emergencyContact,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// FileAttachment describes a file stored in the blob store under Key.
type FileAttachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Incident is an appointment or treatment episode of one patient. Cost and
// TreatmentDetails carry meaning only once the incident is completed.
type Incident struct {
	ID                  string           `json:"id"`
	PatientID           string           `json:"patientId"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Comments            string           `json:"comments,omitempty"`
	AppointmentDate     time.Time        `json:"appointmentDate"`
	Status              IncidentStatus   `json:"status"`
	Cost                float64          `json:"cost,omitempty"`
	TreatmentDetails    string           `json:"treatmentDetails,omitempty"`
	NextAppointmentDate *time.Time       `json:"nextAppointmentDate,omitempty"`
	Files               []FileAttachment `json:"files"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// PatientInput holds the caller-supplied fields of a new patient.
type PatientInput struct {
	FullName         string `json:"fullName"`
	DateOfBirth      string `json:"dateOfBirth"`
	ContactNumber    string `json:"contactNumber"`
	Email            string `json:"email"`
	HealthInfo       string `json:"healthInfo"`
	EmergencyContact string `json:"emergencyContact"`
}

// IncidentInput holds the caller-supplied fields of a new incident.
type IncidentInput struct {
	PatientID           string           `json:"patientId"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Comments            string           `json:"comments"`
	AppointmentDate     time.Time        `json:"appointmentDate"`
	Status              IncidentStatus   `json:"status"`
	Cost                *float64         `json:"cost"`
	TreatmentDetails    string           `json:"treatmentDetails"`
	NextAppointmentDate *time.Time       `json:"nextAppointmentDate"`
	Files               []FileAttachment `json:"files"`
}

type PatientIncidentCount struct {
	Patient
	IncidentCount int `json:"incidentCount"`
}

type TreatmentStats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// AppointmentFilter selects a patient's own appointments.
type AppointmentFilter string

const (
	FilterAll       AppointmentFilter = "all"
	FilterUpcoming  AppointmentFilter = "upcoming"
	FilterCompleted AppointmentFilter = "completed"
	FilterPending   AppointmentFilter = "pending"
)
