package clinic

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire format of DateOfBirth.
const DateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
)

// ValidationErrors maps an input field to the message shown next to it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPhone accepts an optional leading + and up to 16 digits, ignoring
// spaces, dashes and parentheses.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phoneNoise.Replace(phone))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidatePatient checks a complete patient form. It returns
// ValidationErrors or nil.
func ValidatePatient(in PatientInput, now time.Time) error {
	errs := ValidationErrors{}

	if blank(in.FullName) {
		errs["fullName"] = "Full name is required"
	}

	if blank(in.DateOfBirth) {
		errs["dateOfBirth"] = "Date of birth is required"
	} else if dob, err := time.ParseInLocation(DateLayout, strings.TrimSpace(in.DateOfBirth), now.Location()); err != nil || dob.After(now) {
		errs["dateOfBirth"] = "Please enter a valid date"
	}

	if blank(in.ContactNumber) {
		errs["contactNumber"] = "Contact number is required"
	} else if !ValidPhone(in.ContactNumber) {
		errs["contactNumber"] = "Please enter a valid phone number"
	}

	if blank(in.Email) {
		errs["email"] = "Email is required"
	} else if !ValidEmail(in.Email) {
		errs["email"] = "Please enter a valid email address"
	}

	return errs.orNil()
}

// ValidatePatientPatch validates the form that results from applying patch
// to existing.
func ValidatePatientPatch(existing Patient, patch PatientPatch, now time.Time) error {
	return ValidatePatient(mergePatient(existing, patch).input(), now)
}

// ValidateIncident checks a complete incident form. A non-zero cost and
// treatment details are required only for completed incidents.
func ValidateIncident(in IncidentInput) error {
	errs := ValidationErrors{}

	if blank(in.PatientID) {
		errs["patientId"] = "Patient is required"
	}
	if blank(in.Title) {
		errs["title"] = "Title is required"
	}
	if blank(in.Description) {
		errs["description"] = "Description is required"
	}
	if in.AppointmentDate.IsZero() {
		errs["appointmentDate"] = "Appointment date is required"
	}

	switch in.Status {
	case "", StatusPending:
	case StatusCompleted:
		// zero counts as not entered
		if in.Cost == nil || *in.Cost == 0 {
			errs["cost"] = "Cost is required for completed treatments"
		} else if *in.Cost < 0 {
			errs["cost"] = "Cost cannot be negative"
		}
		if blank(in.TreatmentDetails) {
			errs["treatmentDetails"] = "Treatment details are required for completed treatments"
		}
	default:
		errs["status"] = "Status must be pending or completed"
	}

	if len(in.Files) > MaxIncidentFiles {
		errs["files"] = "Maximum 5 files allowed"
	}

	return errs.orNil()
}

// ValidateIncidentPatch validates the form that results from applying patch
// to existing.
func ValidateIncidentPatch(existing Incident, patch IncidentPatch) error {
	return ValidateIncident(mergeIncident(existing, patch).input())
}

func (p Patient) input() PatientInput {
	return PatientInput{
		FullName:         p.FullName,
		DateOfBirth:      p.DateOfBirth,
		ContactNumber:    p.ContactNumber,
		Email:            p.Email,
		HealthInfo:       p.HealthInfo,
		EmergencyContact: p.EmergencyContact,
	}
}

func (inc Incident) input() IncidentInput {
	cost := inc.Cost
	return IncidentInput{
		PatientID:           inc.PatientID,
		Title:               inc.Title,
		Description:         inc.Description,
		Comments:            inc.Comments,
		AppointmentDate:     inc.AppointmentDate,
		Status:              inc.Status,
		Cost:                &cost,
		TreatmentDetails:    inc.TreatmentDetails,
		NextAppointmentDate: inc.NextAppointmentDate,
		Files:               inc.Files,
	}
}
