package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/dental-clinic-records/internal/attachment"
	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
	"github.com/hackgods/dental-clinic-records/internal/metrics"
)

type RouterConfig struct {
	Store          *clinic.Store
	Gate           *auth.Gate
	Files          *attachment.Service
	Storage        StoragePinger
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	MaxUploadBytes int64
	Env            string
	Version        string
}

type handlers struct {
	store     *clinic.Store
	gate      *auth.Gate
	files     *attachment.Service
	log       *slog.Logger
	maxUpload int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(DegradedMiddleware(cfg.Store))

	health := NewHealthHandler(cfg.Storage, cfg.Store, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	h := &handlers{
		store:     cfg.Store,
		gate:      cfg.Gate,
		files:     cfg.Files,
		log:       logger.With(slog.String("component", "api")),
		maxUpload: cfg.MaxUploadBytes,
	}

	r.Get(auth.LoginPath, h.loginPage)
	r.Post(auth.LoginPath, h.login)
	r.Post("/logout", h.logout)
	r.Get(auth.UnauthorizedPath, h.unauthorized)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(cfg.Gate))
		r.Get("/", h.index)
		r.Get("/me", h.me)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(cfg.Gate, clinic.RoleAdmin))

		r.Get("/dashboard", h.dashboard)
		r.Get("/calendar", h.calendar)

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.listPatients)
			r.Post("/", h.createPatient)
			r.Get("/{id}", h.getPatient)
			r.Put("/{id}", h.updatePatient)
			r.Delete("/{id}", h.deletePatient)
			r.Get("/{id}/incidents", h.listPatientIncidents)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.listIncidents)
			r.Post("/", h.createIncident)
			r.Get("/{id}", h.getIncident)
			r.Put("/{id}", h.updateIncident)
			r.Delete("/{id}", h.deleteIncident)
			r.Post("/{id}/files", h.uploadFiles)
			r.Delete("/{id}/files", h.removeFile)
		})

		r.Get("/files/*", h.downloadFile)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(cfg.Gate, clinic.RolePatient))

		r.Get("/my-profile", h.myProfile)
		r.Get("/my-appointments", h.myAppointments)
		r.Get("/my-files/*", h.downloadOwnFile)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})

	return r
}
