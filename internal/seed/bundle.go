// Package seed provides the data written to empty storage on first run.
package seed

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hackgods/dental-clinic-records/internal/clinic"
	"github.com/hackgods/dental-clinic-records/internal/kv"
)

//go:embed default.json
var defaultBundle []byte

// Bundle is the three seeded collections.
type Bundle struct {
	Users     []clinic.User     `json:"users"`
	Patients  []clinic.Patient  `json:"patients"`
	Incidents []clinic.Incident `json:"incidents"`
}

// Default returns the built-in demo bundle.
func Default() (Bundle, error) {
	return decode(defaultBundle)
}

// LoadFile reads a bundle from a JSON file.
func LoadFile(path string) (Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read seed file: %w", err)
	}
	b, err := decode(raw)
	if err != nil {
		return Bundle{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Resolve returns the bundle in path, or the default one when path is empty.
func Resolve(path string) (Bundle, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

func decode(raw []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode seed bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

// Validate checks that user emails are unique, roles are known, and every
// patient account and incident points at a patient in the bundle.
func (b Bundle) Validate() error {
	patients := make(map[string]bool, len(b.Patients))
	for _, p := range b.Patients {
		if p.ID == "" {
			return errors.New("seed: patient without id")
		}
		patients[p.ID] = true
	}

	var errs []error
	emails := make(map[string]bool, len(b.Users))
	for _, u := range b.Users {
		if emails[u.Email] {
			errs = append(errs, fmt.Errorf("seed: duplicate user email %q", u.Email))
		}
		emails[u.Email] = true

		switch u.Role {
		case clinic.RoleAdmin:
		case clinic.RolePatient:
			if !patients[u.PatientID] {
				errs = append(errs, fmt.Errorf("seed: user %s links unknown patient %q", u.ID, u.PatientID))
			}
		default:
			errs = append(errs, fmt.Errorf("seed: user %s has unknown role %q", u.ID, u.Role))
		}
	}
	for _, inc := range b.Incidents {
		if !patients[inc.PatientID] {
			errs = append(errs, fmt.Errorf("seed: incident %s links unknown patient %q", inc.ID, inc.PatientID))
		}
	}
	return errors.Join(errs...)
}

// KV returns the bundle in the shape the storage adapter seeds from. A nil
// collection is left out so it is never seeded.
func (b Bundle) KV() kv.Seed {
	var s kv.Seed
	if b.Users != nil {
		s.Users = b.Users
	}
	if b.Patients != nil {
		s.Patients = b.Patients
	}
	if b.Incidents != nil {
		s.Incidents = b.Incidents
	}
	return s
}

// Write encodes the bundle as indented JSON.
func (b Bundle) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}
