package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hackgods/dental-clinic-records/internal/kv"
)

// StoragePinger is the storage backend as health checks see it.
type StoragePinger interface {
	Ping(ctx context.Context) error
	Driver() kv.Driver
}

type HealthHandler struct {
	storage StoragePinger
	flag    DegradedFlag
	env     string
	version string
}

func NewHealthHandler(storage StoragePinger, flag DegradedFlag, env, version string) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		flag:    flag,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness reports "error" when storage is unreachable and "degraded"
// when it is reachable but some collection change has not been persisted.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"
	name := "storage_" + string(h.storage.Driver())

	if err := h.storage.Ping(ctx); err != nil {
		deps[name] = "down"
		status = "error"
	} else {
		deps[name] = "ok"
	}

	if h.flag.PersistenceDegraded() {
		deps["persistence"] = "degraded"
		if status == "ok" {
			status = "degraded"
		}
	} else {
		deps["persistence"] = "ok"
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
