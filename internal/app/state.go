package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hackgods/dental-clinic-records/internal/attachment"
	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/clinic"
	"github.com/hackgods/dental-clinic-records/internal/config"
	"github.com/hackgods/dental-clinic-records/internal/kv"
	"github.com/hackgods/dental-clinic-records/internal/metrics"
	"github.com/hackgods/dental-clinic-records/internal/seed"
)

// State is the wired runtime: one storage adapter shared by the entity
// store and the access gate, plus the attachment service.
type State struct {
	KV      *kv.Adapter
	Store   *clinic.Store
	Gate    *auth.Gate
	Files   *attachment.Service
	Metrics *metrics.Metrics
}

// Open connects storage and blobs per cfg, seeds empty collections, loads
// the store and resumes any persisted session.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*State, error) {
	bundle, err := seed.Resolve(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("seed bundle: %w", err)
	}

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	blobs, err := attachment.Open(ctx, cfg)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	adapter := kv.NewAdapter(backend, cfg.StorageNamespace, logger)
	return Assemble(ctx, adapter, blobs, bundle, cfg.MaxUploadBytes, logger), nil
}

// Assemble wires already opened storage. Open uses it, and so do tests.
func Assemble(ctx context.Context, adapter *kv.Adapter, blobs attachment.BlobStore, bundle seed.Bundle, maxUpload int64, logger *slog.Logger) *State {
	m := metrics.New()

	adapter.SeedIfAbsent(ctx, bundle.KV())

	store := clinic.NewStore(adapter, logger, clinic.WithObserver(m))
	store.Load(ctx)

	gate := auth.NewGate(adapter, logger, auth.WithLoginRecorder(m))
	gate.Restore(ctx)

	return &State{
		KV:      adapter,
		Store:   store,
		Gate:    gate,
		Files:   attachment.NewService(blobs, maxUpload, logger),
		Metrics: m,
	}
}

func (s *State) Close() error {
	return s.KV.Close()
}
