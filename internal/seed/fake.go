package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

var treatments = []struct {
	title, description, details string
	cost                        float64
}{
	{"Routine cleaning", "Scaling and polishing", "Plaque removed, fluoride applied", 90},
	{"Cavity filling", "Decay on a molar", "Composite filling placed", 140},
	{"Root canal", "Persistent pain in a premolar", "Canal cleaned and sealed", 650},
	{"Tooth extraction", "Broken wisdom tooth", "Tooth extracted under local anaesthetic", 220},
	{"Crown fitting", "Crown after root canal", "Porcelain crown cemented", 900},
	{"Whitening", "Cosmetic whitening session", "In-office whitening, two shades lighter", 300},
	{"Gum treatment", "Bleeding gums", "Deep cleaning below the gum line", 180},
}

// Fake generates a bundle with one admin and patients patient accounts,
// each with a few incidents spread a year either side of now.
func Fake(f *gofakeit.Faker, patients int, now time.Time) Bundle {
	b := Bundle{
		Users: []clinic.User{{
			ID:       "1",
			Email:    "admin@dentalclinic.com",
			Password: "admin123",
			Role:     clinic.RoleAdmin,
			Name:     "Dr. " + f.Name(),
		}},
		Patients:  make([]clinic.Patient, 0, patients),
		Incidents: []clinic.Incident{},
	}

	for i := 1; i <= patients; i++ {
		first, last := f.FirstName(), f.LastName()
		name := first + " " + last
		email := fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), i, f.DomainName())
		created := now.AddDate(0, 0, -f.Number(30, 720)).UTC().Truncate(time.Second)

		p := clinic.Patient{
			ID:               fmt.Sprintf("%s-%03d", clinic.PatientIDPrefix, i),
			FullName:         name,
			DateOfBirth:      f.DateRange(now.AddDate(-90, 0, 0), now.AddDate(-2, 0, 0)).Format(clinic.DateLayout),
			ContactNumber:    fmt.Sprintf("+1 %s", f.Numerify("### ### ####")),
			Email:            email,
			HealthInfo:       f.RandomString([]string{"", "No known allergies", "Allergic to penicillin", "Diabetic", "Asthma"}),
			EmergencyContact: fmt.Sprintf("%s, +1 %s", f.Name(), f.Numerify("### ### ####")),
			CreatedAt:        created,
			UpdatedAt:        created,
		}
		b.Patients = append(b.Patients, p)

		b.Users = append(b.Users, clinic.User{
			ID:        fmt.Sprintf("%d", i+1),
			Email:     email,
			Password:  "patient123",
			Role:      clinic.RolePatient,
			PatientID: p.ID,
			Name:      name,
		})

		for j := 0; j < f.Number(1, 4); j++ {
			b.Incidents = append(b.Incidents, fakeIncident(f, p, len(b.Incidents)+1, now))
		}
	}
	return b
}

func fakeIncident(f *gofakeit.Faker, p clinic.Patient, n int, now time.Time) clinic.Incident {
	t := treatments[f.Number(0, len(treatments)-1)]
	at := now.Add(time.Duration(f.Number(-365, 365)) * 24 * time.Hour).UTC().Truncate(time.Hour)

	inc := clinic.Incident{
		ID:              fmt.Sprintf("%s-%04d", clinic.IncidentIDPrefix, n),
		PatientID:       p.ID,
		Title:           t.title,
		Description:     t.description,
		AppointmentDate: at,
		Status:          clinic.StatusPending,
		Files:           []clinic.FileAttachment{},
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.CreatedAt,
	}
	if at.Before(now) && f.Bool() {
		inc.Status = clinic.StatusCompleted
		inc.Cost = t.cost
		inc.TreatmentDetails = t.details
		inc.UpdatedAt = at
	}
	return inc
}
