package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-clinic-records/internal/attachment"
	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
	"github.com/hackgods/dental-clinic-records/internal/kv"
	"github.com/hackgods/dental-clinic-records/internal/metrics"
	"github.com/hackgods/dental-clinic-records/internal/seed"
)

var clinicNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// flakyStorage lets a test make every collection write fail.
type flakyStorage struct {
	*kv.Adapter
	fail bool
}

func (f *flakyStorage) Write(ctx context.Context, key string, v any) bool {
	if f.fail {
		return false
	}
	return f.Adapter.Write(ctx, key, v)
}

type harness struct {
	t       *testing.T
	handler http.Handler
	store   *clinic.Store
	storage *flakyStorage
	blobs   *attachment.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	adapter := kv.NewAdapter(kv.NewMemoryBackend(), "", logger)
	bundle, err := seed.Default()
	require.NoError(t, err)
	adapter.SeedIfAbsent(ctx, bundle.KV())

	m := metrics.New()
	storage := &flakyStorage{Adapter: adapter}
	store := clinic.NewStore(storage, logger,
		clinic.WithClock(func() time.Time { return clinicNow }),
		clinic.WithObserver(m))
	store.Load(ctx)

	gate := auth.NewGate(adapter, logger, auth.WithLoginRecorder(m))
	blobs := attachment.NewMemoryStore()

	return &harness{
		t: t,
		handler: NewRouter(RouterConfig{
			Store:          store,
			Gate:           gate,
			Files:          attachment.NewService(blobs, 1024, logger),
			Storage:        adapter,
			Metrics:        m,
			Logger:         logger,
			MaxUploadBytes: 1024,
			Env:            "test",
			Version:        "test",
		}),
		store:   store,
		storage: storage,
		blobs:   blobs,
	}
}

func (h *harness) do(method, target string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(email, password string) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/login", LoginRequest{Email: email, Password: password})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (h *harness) loginAdmin()   { h.login("admin@dentalclinic.com", "admin123") }
func (h *harness) loginPatient() { h.login("john.doe@email.com", "patient123") }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/login", LoginRequest{Email: "admin@dentalclinic.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	failed := decode[LoginResponse](t, rec)
	assert.False(t, failed.Success)
	assert.Equal(t, "invalid email or password", failed.Error)

	form := url.Values{"email": {"admin@dentalclinic.com"}, "password": {"admin123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	ok := decode[LoginResponse](t, rec)
	assert.True(t, ok.Success)
	assert.Equal(t, "/dashboard", ok.Redirect)
	assert.NotContains(t, rec.Body.String(), "admin123")

	me := decode[SessionResponse](t, h.do(http.MethodGet, "/me", nil))
	assert.True(t, me.Authenticated)
	assert.Equal(t, clinic.RoleAdmin, me.User.Role)

	rec = h.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/logout", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/login", nil).Code)
}

func TestRouteGuard(t *testing.T) {
	h := newHarness(t)

	expectRedirect := func(target, location string) {
		t.Helper()
		rec := h.do(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, target)
		assert.Equal(t, location, rec.Header().Get("Location"), target)
	}

	for _, target := range []string{"/", "/me", "/dashboard", "/patients", "/calendar", "/my-profile"} {
		expectRedirect(target, "/login")
	}

	h.loginPatient()
	for _, target := range []string{"/dashboard", "/patients", "/incidents", "/calendar", "/files/x"} {
		expectRedirect(target, "/unauthorized")
	}
	expectRedirect("/", "/my-profile")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/my-profile", nil).Code)

	h.loginAdmin()
	expectRedirect("/my-profile", "/unauthorized")
	expectRedirect("/my-appointments", "/unauthorized")
	expectRedirect("/", "/dashboard")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/dashboard", nil).Code)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/unauthorized", nil).Code)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	rec := h.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[DashboardResponse](t, rec)

	assert.Equal(t, 3, d.TotalPatients)
	assert.Equal(t, 5, d.TotalIncidents)
	assert.Equal(t, 730.0, d.TotalRevenue)
	assert.Equal(t, clinic.TreatmentStats{Pending: 3, Completed: 2}, d.TreatmentStats)

	var upcoming []string
	for _, a := range d.UpcomingAppointments {
		upcoming = append(upcoming, a.ID)
	}
	assert.Equal(t, []string{"INC-004", "INC-002", "INC-005"}, upcoming)
	assert.Equal(t, "Jane Smith", d.UpcomingAppointments[0].PatientName)

	require.Len(t, d.TopPatients, 3)
	assert.Equal(t, "PAT-001", d.TopPatients[0].ID)
	assert.Equal(t, 2, d.TopPatients[0].IncidentCount)
}

func TestPatientLifecycle(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	rec := h.do(http.MethodPost, "/patients", clinic.PatientInput{Email: "bad", DateOfBirth: "2999-01-01"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	invalid := decode[ValidationResponse](t, rec)
	assert.Equal(t, "Full name is required", invalid.Fields["fullName"])
	assert.Contains(t, invalid.Fields, "email")
	assert.Contains(t, invalid.Fields, "dateOfBirth")
	assert.Contains(t, invalid.Fields, "contactNumber")

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/patients", map[string]any{"nope": 1}).Code)

	rec = h.do(http.MethodPost, "/patients", clinic.PatientInput{
		FullName:      "Ada Lovelace",
		DateOfBirth:   "1990-12-10",
		ContactNumber: "+44 20 7946 0000",
		Email:         "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[clinic.Patient](t, rec)
	assert.True(t, strings.HasPrefix(created.ID, "PAT-"))
	assert.Equal(t, "/patients/"+created.ID, rec.Header().Get("Location"))

	found := decode[[]clinic.Patient](t, h.do(http.MethodGet, "/patients?search=LOVELACE", nil))
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	name := "Ada King"
	rec = h.do(http.MethodPut, "/patients/"+created.ID, clinic.PatientPatch{FullName: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada King", decode[clinic.Patient](t, rec).FullName)

	bad := "not-an-email"
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodPut, "/patients/"+created.ID, clinic.PatientPatch{Email: &bad}).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPut, "/patients/PAT-404", clinic.PatientPatch{FullName: &name}).Code)

	detail := decode[PatientDetailResponse](t, h.do(http.MethodGet, "/patients/PAT-002", nil))
	assert.Len(t, detail.Incidents, 2)
	assert.Equal(t, clinic.TreatmentStats{Pending: 1, Completed: 1}, detail.Summary)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/patients/PAT-002", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/patients/PAT-002", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/patients/PAT-002", nil).Code)
	assert.Empty(t, h.store.PatientIncidents("PAT-002"), "incidents cascade with their patient")
}

func TestIncidentLifecycle(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	rec := h.do(http.MethodPost, "/incidents", clinic.IncidentInput{
		PatientID:       "PAT-003",
		Title:           "Check-up",
		Description:     "Annual check",
		AppointmentDate: clinicNow.Add(48 * time.Hour),
		Status:          clinic.StatusCompleted,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decode[ValidationResponse](t, rec).Fields
	assert.Equal(t, "Cost is required for completed treatments", fields["cost"])
	assert.Contains(t, fields, "treatmentDetails")

	rec = h.do(http.MethodPost, "/incidents", clinic.IncidentInput{
		PatientID:       "PAT-003",
		Title:           "Check-up",
		Description:     "Annual check",
		AppointmentDate: clinicNow.Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inc := decode[IncidentView](t, rec)
	assert.Equal(t, clinic.StatusPending, inc.Status)
	assert.Equal(t, "Michael Brown", inc.PatientName)

	filtered := decode[[]IncidentView](t, h.do(http.MethodGet, "/incidents?search=michael&status=pending", nil))
	assert.Len(t, filtered, 2)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/incidents?status=lost", nil).Code)

	status := clinic.StatusCompleted
	assert.Equal(t, http.StatusUnprocessableEntity,
		h.do(http.MethodPut, "/incidents/"+inc.ID, clinic.IncidentPatch{Status: &status}).Code)

	cost, details := 120.0, "Scaled and polished"
	rec = h.do(http.MethodPut, "/incidents/"+inc.ID, clinic.IncidentPatch{Status: &status, Cost: &cost, TreatmentDetails: &details})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 120.0, decode[IncidentView](t, rec).Cost)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/incidents/"+inc.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/incidents/"+inc.ID, nil).Code)
}

func TestCompletedIncident_ZeroCostRejectedAndEditsKeepCost(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	zero := 0.0
	in := clinic.IncidentInput{
		PatientID:        "PAT-003",
		Title:            "Checkup",
		Description:      "Routine",
		AppointmentDate:  clinicNow.Add(-24 * time.Hour),
		Status:           clinic.StatusCompleted,
		Cost:             &zero,
		TreatmentDetails: "done",
	}
	rec := h.do(http.MethodPost, "/incidents", in)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Cost is required for completed treatments", decode[ValidationResponse](t, rec).Fields["cost"])

	cost := 95.0
	in.Cost = &cost
	rec = h.do(http.MethodPost, "/incidents", in)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[IncidentView](t, rec).ID

	title := "Checkup (renamed)"
	rec = h.do(http.MethodPut, "/incidents/"+id, clinic.IncidentPatch{Title: &title})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[IncidentView](t, rec)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 95.0, updated.Cost)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPut, "/incidents/INC-missing", clinic.IncidentPatch{Title: &title}).Code)
}

func uploadRequest(t *testing.T, target string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAttachments(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, uploadRequest(t, "/incidents/INC-001/files", map[string]string{"xray.txt": "molar scan"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inc := decode[IncidentView](t, rec)
	require.Len(t, inc.Files, 1)
	file := inc.Files[0]
	assert.Equal(t, "xray.txt", file.Name)
	assert.Equal(t, int64(10), file.Size)

	rec = h.do(http.MethodGet, "/files/"+file.Key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "molar scan", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "xray.txt")

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/files/incidents/INC-001/unknown", nil).Code)

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, uploadRequest(t, "/incidents/INC-001/files", map[string]string{"huge.bin": strings.Repeat("x", 2048)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 1, h.blobs.Len())

	h.loginPatient()
	rec = h.do(http.MethodGet, "/my-files/"+file.Key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "molar scan", rec.Body.String())

	h.login("jane.smith@email.com", "patient123")
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/my-files/"+file.Key, nil).Code)

	h.loginAdmin()
	rec = h.do(http.MethodDelete, "/incidents/INC-001/files?key="+url.QueryEscape(file.Key), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[IncidentView](t, rec).Files)
	assert.Zero(t, h.blobs.Len())
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/incidents/INC-001/files?key="+url.QueryEscape(file.Key), nil).Code)
}

func TestAttachments_AtMostFivePerIncident(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	five := map[string]string{}
	for i := 1; i <= clinic.MaxIncidentFiles; i++ {
		five[fmt.Sprintf("scan-%d.txt", i)] = "x"
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, uploadRequest(t, "/incidents/INC-001/files", five))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[IncidentView](t, rec).Files, clinic.MaxIncidentFiles)

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, uploadRequest(t, "/incidents/INC-001/files", map[string]string{"sixth.txt": "x"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Maximum 5 files allowed")
	assert.Equal(t, clinic.MaxIncidentFiles, h.blobs.Len())

	six := map[string]string{"extra.txt": "x"}
	for name, content := range five {
		six[name] = content
	}
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, uploadRequest(t, "/incidents/INC-003/files", six))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, clinic.MaxIncidentFiles, h.blobs.Len(), "nothing stored for a rejected batch")

	inc, ok := h.store.Incident("INC-001")
	require.True(t, ok)
	assert.Len(t, inc.Files, clinic.MaxIncidentFiles)
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	h := newHarness(t)
	mux, ok := h.handler.(*chi.Mux)
	require.True(t, ok)
	mux.Get("/explode", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := h.do(http.MethodGet, "/explode", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", nil).Code)
}

func TestDeleteIncidentPurgesBlobs(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, uploadRequest(t, "/incidents/INC-003/files", map[string]string{"a.txt": "a", "b.txt": "b"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, h.blobs.Len())

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/incidents/INC-003", nil).Code)
	assert.Zero(t, h.blobs.Len())
}

func TestCalendar(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	rec := h.do(http.MethodGet, "/calendar?month=2026-11&date=2026-11-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cal := decode[CalendarResponse](t, rec)
	assert.Equal(t, "2026-11", cal.Month)
	assert.Len(t, cal.Days, 30)
	require.Len(t, cal.SelectedAppointments, 1)
	assert.Equal(t, "INC-004", cal.SelectedAppointments[0].ID)
	assert.Len(t, cal.Days[19].Appointments, 1)

	today := decode[CalendarResponse](t, h.do(http.MethodGet, "/calendar", nil))
	assert.Equal(t, "2026-03", today.Month)
	assert.Equal(t, "2026-03-10", today.SelectedDate)
	assert.True(t, today.Days[9].Today)
	assert.True(t, today.Days[8].Past)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/calendar?month=March", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/calendar?date=10/03/2026", nil).Code)
}

func TestPatientSelfService(t *testing.T) {
	h := newHarness(t)
	h.loginPatient()

	profile := decode[ProfileResponse](t, h.do(http.MethodGet, "/my-profile", nil))
	assert.Equal(t, "PAT-001", profile.Patient.ID)
	assert.Equal(t, clinic.TreatmentStats{Pending: 1, Completed: 1}, profile.Summary)

	all := decode[AppointmentsResponse](t, h.do(http.MethodGet, "/my-appointments", nil))
	assert.Equal(t, clinic.FilterAll, all.Filter)
	require.Len(t, all.Appointments, 2)
	assert.Equal(t, "INC-002", all.Appointments[0].ID, "newest first")

	upcoming := decode[AppointmentsResponse](t, h.do(http.MethodGet, "/my-appointments?filter=upcoming", nil))
	require.Len(t, upcoming.Appointments, 1)
	assert.Equal(t, "INC-002", upcoming.Appointments[0].ID)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/my-appointments?filter=soon", nil).Code)
}

func TestPersistenceDegraded(t *testing.T) {
	h := newHarness(t)
	h.loginAdmin()

	ready := decode[ReadinessResponse](t, h.do(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, "ok", ready.Status)

	h.storage.fail = true
	rec := h.do(http.MethodPost, "/patients", clinic.PatientInput{
		FullName:      "Grace Hopper",
		DateOfBirth:   "1980-12-09",
		ContactNumber: "5551234567",
		Email:         "grace@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(DegradedHeader))

	rec = h.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready = decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "degraded", ready.Dependencies["persistence"])

	h.storage.fail = false
	name := "Grace B. Hopper"
	rec = h.do(http.MethodPut, "/patients/PAT-001", clinic.PatientPatch{FullName: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(DegradedHeader))
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	live := decode[LivenessResponse](t, h.do(http.MethodGet, "/health/live", nil))
	assert.Equal(t, "ok", live.Status)
	assert.Equal(t, "test", live.Env)

	ready := decode[ReadinessResponse](t, h.do(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, "ok", ready.Dependencies["storage_memory"])

	h.do(http.MethodPost, "/login", LoginRequest{Email: "x@y.z", Password: "nope"})
	rec := h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dental_clinic_login_attempts_total{outcome="failure"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/health/live"`)

	rec = h.do(http.MethodGet, "/health/live", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/nowhere", nil).Code)
}
