package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-records/internal/clinic"
)

var ErrTooLarge = errors.New("attachment: file exceeds upload limit")

type Service struct {
	blobs    BlobStore
	maxBytes int64
	log      *slog.Logger
}

func NewService(blobs BlobStore, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{blobs: blobs, maxBytes: maxBytes, log: logger.With(slog.String("component", "attachment"))}
}

// Upload stores the bytes of one file for an incident and returns the
// descriptor to append to the incident's file list.
func (s *Service) Upload(ctx context.Context, incidentID, name, contentType string, r io.Reader) (clinic.FileAttachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return clinic.FileAttachment{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return clinic.FileAttachment{}, ErrTooLarge
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	key := path.Join("incidents", incidentID, uuid.NewString())

	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return clinic.FileAttachment{}, fmt.Errorf("store %s: %w", key, err)
	}

	s.log.InfoContext(ctx, "attachment stored",
		slog.String("incident_id", incidentID),
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return clinic.FileAttachment{Name: name, Size: int64(len(data)), Type: contentType, Key: key}, nil
}

// Open returns the stored bytes of an attachment and its content type.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.blobs.Get(ctx, key)
}

// Purge deletes the blobs behind files. Failures are logged and skipped.
// It returns how many were removed.
func (s *Service) Purge(ctx context.Context, files []clinic.FileAttachment) int {
	removed := 0
	for _, f := range files {
		if f.Key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, f.Key); err != nil {
			s.log.WarnContext(ctx, "attachment purge failed", slog.String("key", f.Key), slog.Any("err", err))
			continue
		}
		removed++
	}
	return removed
}

func (s *Service) Driver() Driver { return s.blobs.Driver() }
