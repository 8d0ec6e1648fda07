package clinic

import "time"

// PatientPatch lists the patchable patient fields. Nil fields are left
// untouched. Id and CreatedAt are not patchable.
type PatientPatch struct {
	FullName         *string `json:"fullName"`
	DateOfBirth      *string `json:"dateOfBirth"`
	ContactNumber    *string `json:"contactNumber"`
	Email            *string `json:"email"`
	HealthInfo       *string `json:"healthInfo"`
	EmergencyContact *string `json:"emergencyContact"`
}

// IncidentPatch lists the patchable incident fields. A non-nil
// NextAppointmentDate pointing at the zero time clears the date.
type IncidentPatch struct {
	PatientID           *string           `json:"patientId"`
	Title               *string           `json:"title"`
	Description         *string           `json:"description"`
	Comments            *string           `json:"comments"`
	AppointmentDate     *time.Time        `json:"appointmentDate"`
	Status              *IncidentStatus   `json:"status"`
	Cost                *float64          `json:"cost"`
	TreatmentDetails    *string           `json:"treatmentDetails"`
	NextAppointmentDate *time.Time        `json:"nextAppointmentDate"`
	Files               *[]FileAttachment `json:"files"`
}

func mergePatient(p Patient, patch PatientPatch) Patient {
	setString(&p.FullName, patch.FullName)
	setString(&p.DateOfBirth, patch.DateOfBirth)
	setString(&p.ContactNumber, patch.ContactNumber)
	setString(&p.Email, patch.Email)
	setString(&p.HealthInfo, patch.HealthInfo)
	setString(&p.EmergencyContact, patch.EmergencyContact)
	return p
}

func mergeIncident(inc Incident, patch IncidentPatch) Incident {
	setString(&inc.PatientID, patch.PatientID)
	setString(&inc.Title, patch.Title)
	setString(&inc.Description, patch.Description)
	setString(&inc.Comments, patch.Comments)
	setString(&inc.TreatmentDetails, patch.TreatmentDetails)
	if patch.AppointmentDate != nil {
		inc.AppointmentDate = *patch.AppointmentDate
	}
	if patch.Status != nil {
		inc.Status = *patch.Status
	}
	if patch.Cost != nil {
		inc.Cost = *patch.Cost
	}
	if patch.NextAppointmentDate != nil {
		if patch.NextAppointmentDate.IsZero() {
			inc.NextAppointmentDate = nil
		} else {
			next := *patch.NextAppointmentDate
			inc.NextAppointmentDate = &next
		}
	}
	if patch.Files != nil {
		inc.Files = cloneFiles(*patch.Files)
	}
	return inc
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func cloneFiles(in []FileAttachment) []FileAttachment {
	out := make([]FileAttachment, len(in))
	copy(out, in)
	return out
}

func cloneIncident(inc Incident) Incident {
	inc.Files = cloneFiles(inc.Files)
	if inc.NextAppointmentDate != nil {
		next := *inc.NextAppointmentDate
		inc.NextAppointmentDate = &next
	}
	return inc
}
