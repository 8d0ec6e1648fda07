// Package kv is the persistent key-value boundary: every durable read or
// write of clinic data goes through an Adapter, which stores JSON values on a
// pluggable Backend.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// Logical storage keys.
const (
	KeyUsers       = "dental_clinic_users"
	KeyPatients    = "dental_clinic_patients"
	KeyIncidents   = "dental_clinic_incidents"
	KeyCurrentUser = "dental_clinic_current_user"
)

// Seed is the bundle written on first run. Each field is stored under its
// collection key only when that key holds no value yet.
type Seed struct {
	Users     any `json:"users"`
	Patients  any `json:"patients"`
	Incidents any `json:"incidents"`
}

// Adapter serializes values to JSON and never returns storage errors to its
// callers: failures are logged and reported as false.
type Adapter struct {
	backend   Backend
	namespace string
	log       *slog.Logger
}

func NewAdapter(backend Backend, namespace string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		backend:   backend,
		namespace: namespace,
		log:       logger.With(slog.String("component", "kv"), slog.String("driver", string(backend.Driver()))),
	}
}

func (a *Adapter) storageKey(key string) string {
	if a.namespace == "" {
		return key
	}
	return a.namespace + ":" + key
}

// Read decodes the value stored under key into dst. It reports false when
// the key is absent, holds JSON null, or cannot be decoded into dst.
func (a *Adapter) Read(ctx context.Context, key string, dst any) bool {
	data, ok := a.raw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		a.log.WarnContext(ctx, "discarding unreadable storage value",
			slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Write stores v under key. It reports false when v cannot be encoded or the
// backend rejects the write.
func (a *Adapter) Write(ctx context.Context, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.ErrorContext(ctx, "encode storage value",
			slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if err := a.backend.Set(ctx, a.storageKey(key), data); err != nil {
		a.log.ErrorContext(ctx, "write storage value",
			slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (a *Adapter) Remove(ctx context.Context, key string) bool {
	if err := a.backend.Delete(ctx, a.storageKey(key)); err != nil {
		a.log.ErrorContext(ctx, "remove storage value",
			slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Exists reports whether key currently holds a value. An empty array is a
// value.
func (a *Adapter) Exists(ctx context.Context, key string) bool {
	_, ok := a.raw(ctx, key)
	return ok
}

// SeedIfAbsent writes each default collection whose key is empty and returns
// the keys it wrote. Existing values, including empty arrays, are never
// overwritten.
func (a *Adapter) SeedIfAbsent(ctx context.Context, seed Seed) []string {
	var seeded []string
	for _, c := range []struct {
		key string
		v   any
	}{
		{KeyUsers, seed.Users},
		{KeyPatients, seed.Patients},
		{KeyIncidents, seed.Incidents},
	} {
		if c.v == nil || a.Exists(ctx, c.key) {
			continue
		}
		if a.Write(ctx, c.key, c.v) {
			seeded = append(seeded, c.key)
		}
	}
	if len(seeded) > 0 {
		a.log.InfoContext(ctx, "seeded storage", slog.Any("keys", seeded))
	}
	return seeded
}

// Ping checks the backend is reachable.
func (a *Adapter) Ping(ctx context.Context) error { return a.backend.Ping(ctx) }

func (a *Adapter) Driver() Driver { return a.backend.Driver() }

func (a *Adapter) Close() error { return a.backend.Close() }

func (a *Adapter) raw(ctx context.Context, key string) ([]byte, bool) {
	data, err := a.backend.Get(ctx, a.storageKey(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.log.ErrorContext(ctx, "read storage value",
				slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	return data, true
}
