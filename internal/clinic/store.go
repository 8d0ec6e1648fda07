// Package clinic owns the in-memory patient and incident collections, the
// queries derived from them and the input rules applied before they change.
package clinic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hackgods/dental-clinic-records/internal/kv"
)

// Storage is the durable mirror the store writes every mutation through.
// *kv.Adapter implements it.
type Storage interface {
	Read(ctx context.Context, key string, dst any) bool
	Write(ctx context.Context, key string, v any) bool
}

// Observer is notified of store activity. It must not call back into the
// store.
type Observer interface {
	Mutation(entity, op string)
	PersistFailed(key string)
}

type nopObserver struct{}

func (nopObserver) Mutation(string, string) {}
func (nopObserver) PersistFailed(string)    {}

type StoreOption func(*Store)

// WithClock overrides the time source used for timestamps and date queries.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides kv.NewID.
func WithIDGenerator(newID func(prefix string) string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

func WithObserver(o Observer) StoreOption {
	return func(s *Store) { s.observer = o }
}

// Store is the sole in-memory owner of the patient and incident collections.
// Every mutation replaces the affected collection in Storage as a whole.
// A failed write leaves the in-memory state changed; the affected key stays
// flagged until a later write of it succeeds.
type Store struct {
	mu        sync.RWMutex
	storage   Storage
	log       *slog.Logger
	now       func() time.Time
	newID     func(prefix string) string
	observer  Observer
	patients  []Patient
	incidents []Incident
	unsynced  map[string]struct{}
}

func NewStore(storage Storage, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		storage:  storage,
		log:      logger.With(slog.String("component", "store")),
		now:      time.Now,
		newID:    kv.NewID,
		observer: nopObserver{},
		unsynced: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collections with the persisted ones. Missing
// or unreadable collections load as empty.
func (s *Store) Load(ctx context.Context) {
	var patients []Patient
	var incidents []Incident
	if !s.storage.Read(ctx, kv.KeyPatients, &patients) {
		patients = nil
	}
	if !s.storage.Read(ctx, kv.KeyIncidents, &incidents) {
		incidents = nil
	}

	s.mu.Lock()
	s.patients = patients
	s.incidents = incidents
	s.mu.Unlock()

	s.log.InfoContext(ctx, "store loaded",
		slog.Int("patients", len(patients)), slog.Int("incidents", len(incidents)))
}

// Now is the store's clock.
func (s *Store) Now() time.Time { return s.now() }

// PersistenceDegraded reports whether some collection failed to reach
// storage and has not been written successfully since.
func (s *Store) PersistenceDegraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unsynced) > 0
}

func (s *Store) AddPatient(ctx context.Context, in PatientInput) Patient {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := Patient{
		ID:               s.uniqueID(PatientIDPrefix, s.patientIndex),
		FullName:         in.FullName,
		DateOfBirth:      in.DateOfBirth,
		ContactNumber:    in.ContactNumber,
		Email:            in.Email,
		HealthInfo:       in.HealthInfo,
		EmergencyContact: in.EmergencyContact,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.patients = append(s.patients, p)
	s.persistPatients(ctx)
	s.observer.Mutation("patient", "create")
	return p
}

// UpdatePatient merges patch into the patient with the given id. The
// collection is persisted even when no patient matched.
func (s *Store) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated Patient
	i := s.patientIndex(id)
	if i >= 0 {
		updated = mergePatient(s.patients[i], patch)
		updated.UpdatedAt = s.now()
		s.patients[i] = updated
	}
	s.persistPatients(ctx)
	if i < 0 {
		return Patient{}, false
	}
	s.observer.Mutation("patient", "update")
	return updated, true
}

// DeletePatient removes the patient and, as part of the patient's
// destruction contract, every incident that references it. Both collections
// are persisted. It reports whether the patient existed.
func (s *Store) DeletePatient(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.patientIndex(id) >= 0
	kept := s.patients[:0:0]
	for _, p := range s.patients {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.patients = kept
	removed := s.cascadePatientIncidents(id)

	s.persistPatients(ctx)
	s.persistIncidents(ctx)
	s.observer.Mutation("patient", "delete")
	if removed > 0 {
		s.log.InfoContext(ctx, "cascaded patient delete",
			slog.String("patient_id", id), slog.Int("incidents_removed", removed))
	}
	return existed
}

// cascadePatientIncidents drops every incident owned by patientID and
// returns how many were dropped. Callers hold the write lock.
func (s *Store) cascadePatientIncidents(patientID string) int {
	kept := s.incidents[:0:0]
	for _, inc := range s.incidents {
		if inc.PatientID != patientID {
			kept = append(kept, inc)
		}
	}
	removed := len(s.incidents) - len(kept)
	s.incidents = kept
	return removed
}

func (s *Store) Patient(id string) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.patientIndex(id); i >= 0 {
		return s.patients[i], true
	}
	return Patient{}, false
}

// Patients returns a copy of the patient collection in store order.
func (s *Store) Patients() []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, len(s.patients))
	copy(out, s.patients)
	return out
}

func (s *Store) AddIncident(ctx context.Context, in IncidentInput) Incident {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := in.Status
	if status == "" {
		status = StatusPending
	}
	var cost float64
	if in.Cost != nil {
		cost = *in.Cost
	}

	now := s.now()
	inc := cloneIncident(Incident{
		ID:                  s.uniqueID(IncidentIDPrefix, s.incidentIndex),
		PatientID:           in.PatientID,
		Title:               in.Title,
		Description:         in.Description,
		Comments:            in.Comments,
		AppointmentDate:     in.AppointmentDate,
		Status:              status,
		Cost:                cost,
		TreatmentDetails:    in.TreatmentDetails,
		NextAppointmentDate: in.NextAppointmentDate,
		Files:               in.Files,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	s.incidents = append(s.incidents, inc)
	s.persistIncidents(ctx)
	s.observer.Mutation("incident", "create")
	return cloneIncident(inc)
}

// UpdateIncident merges patch into the incident with the given id. The
// collection is persisted even when no incident matched.
func (s *Store) UpdateIncident(ctx context.Context, id string, patch IncidentPatch) (Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated Incident
	i := s.incidentIndex(id)
	if i >= 0 {
		updated = mergeIncident(s.incidents[i], patch)
		updated.UpdatedAt = s.now()
		s.incidents[i] = updated
	}
	s.persistIncidents(ctx)
	if i < 0 {
		return Incident{}, false
	}
	s.observer.Mutation("incident", "update")
	return cloneIncident(updated), true
}

// DeleteIncident removes one incident. Nothing else is affected. It reports
// whether the incident existed.
func (s *Store) DeleteIncident(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := false
	kept := s.incidents[:0:0]
	for _, inc := range s.incidents {
		if inc.ID == id {
			existed = true
			continue
		}
		kept = append(kept, inc)
	}
	s.incidents = kept
	s.persistIncidents(ctx)
	s.observer.Mutation("incident", "delete")
	return existed
}

func (s *Store) Incident(id string) (Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.incidentIndex(id); i >= 0 {
		return cloneIncident(s.incidents[i]), true
	}
	return Incident{}, false
}

// Incidents returns a copy of the incident collection in store order.
func (s *Store) Incidents() []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterIncidents(func(Incident) bool { return true })
}

func (s *Store) patientIndex(id string) int {
	for i := range s.patients {
		if s.patients[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) incidentIndex(id string) int {
	for i := range s.incidents {
		if s.incidents[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID draws ids until one is unused within its collection.
func (s *Store) uniqueID(prefix string, index func(string) int) string {
	for {
		id := s.newID(prefix)
		if index(id) < 0 {
			return id
		}
		s.log.Warn("generated id collided, drawing again", slog.String("id", id))
	}
}

// An emptied collection is written as [] rather than null so it is not
// mistaken for an absent one on the next start.
func (s *Store) persistPatients(ctx context.Context) {
	patients := s.patients
	if patients == nil {
		patients = []Patient{}
	}
	s.persist(ctx, kv.KeyPatients, patients)
}

func (s *Store) persistIncidents(ctx context.Context) {
	incidents := s.incidents
	if incidents == nil {
		incidents = []Incident{}
	}
	s.persist(ctx, kv.KeyIncidents, incidents)
}

func (s *Store) persist(ctx context.Context, key string, v any) {
	if s.storage.Write(ctx, key, v) {
		delete(s.unsynced, key)
		return
	}
	s.unsynced[key] = struct{}{}
	s.observer.PersistFailed(key)
	s.log.WarnContext(ctx, "collection changed in memory but not persisted", slog.String("key", key))
}

// CheckedUpdatePatient validates patch against the patient as currently
// stored and applies it under the same lock. check may be nil. Nothing is
// persisted when the patient is missing or check fails.
func (s *Store) CheckedUpdatePatient(ctx context.Context, id string, patch PatientPatch, check func(Patient) error) (Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.patientIndex(id)
	if i < 0 {
		return Patient{}, ErrPatientNotFound
	}
	if check != nil {
		if err := check(s.patients[i]); err != nil {
			return Patient{}, err
		}
	}
	updated := mergePatient(s.patients[i], patch)
	updated.UpdatedAt = s.now()
	s.patients[i] = updated
	s.persistPatients(ctx)
	s.observer.Mutation("patient", "update")
	return updated, nil
}

// CheckedUpdateIncident is CheckedUpdatePatient for incidents. It also
// returns the incident as it was before the patch.
func (s *Store) CheckedUpdateIncident(ctx context.Context, id string, patch IncidentPatch, check func(Incident) error) (before, after Incident, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.incidentIndex(id)
	if i < 0 {
		return Incident{}, Incident{}, ErrIncidentNotFound
	}
	if check != nil {
		if err := check(cloneIncident(s.incidents[i])); err != nil {
			return Incident{}, Incident{}, err
		}
	}
	before = cloneIncident(s.incidents[i])
	after = mergeIncident(s.incidents[i], patch)
	after.UpdatedAt = s.now()
	s.incidents[i] = after
	s.persistIncidents(ctx)
	s.observer.Mutation("incident", "update")
	return before, cloneIncident(after), nil
}

// AppendIncidentFiles attaches files to the incident unless that would take
// it past MaxIncidentFiles.
func (s *Store) AppendIncidentFiles(ctx context.Context, id string, files []FileAttachment) (Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.incidentIndex(id)
	if i < 0 {
		return Incident{}, ErrIncidentNotFound
	}
	inc := s.incidents[i]
	if len(inc.Files)+len(files) > MaxIncidentFiles {
		return Incident{}, ErrTooManyFiles
	}
	merged := make([]FileAttachment, 0, len(inc.Files)+len(files))
	merged = append(append(merged, inc.Files...), files...)
	inc.Files = merged
	inc.UpdatedAt = s.now()
	s.incidents[i] = inc
	s.persistIncidents(ctx)
	s.observer.Mutation("incident", "attach")
	return cloneIncident(inc), nil
}

// DetachIncidentFile removes the attachment with the given blob key and
// returns the updated incident together with the removed descriptor.
func (s *Store) DetachIncidentFile(ctx context.Context, id, key string) (Incident, FileAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.incidentIndex(id)
	if i < 0 {
		return Incident{}, FileAttachment{}, ErrIncidentNotFound
	}
	inc := s.incidents[i]
	kept := make([]FileAttachment, 0, len(inc.Files))
	var removed FileAttachment
	found := false
	for _, f := range inc.Files {
		if !found && key != "" && f.Key == key {
			removed, found = f, true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return Incident{}, FileAttachment{}, ErrFileNotFound
	}
	inc.Files = kept
	inc.UpdatedAt = s.now()
	s.incidents[i] = inc
	s.persistIncidents(ctx)
	s.observer.Mutation("incident", "detach")
	return cloneIncident(inc), removed, nil
}
