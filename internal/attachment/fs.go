package attachment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps each blob as a file under root with a ".meta" sidecar
// holding its content type.
type FSStore struct {
	root string
}

type fsMeta struct {
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("attachment: fs root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Driver() Driver { return DriverFS }

// sanitizeKey rejects keys that are empty, absolute or climb out of root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (s *FSStore) paths(key string) (data, meta string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	data = filepath.Join(s.root, filepath.FromSlash(k))
	return data, data + ".meta", nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dataPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return err
	}

	meta, err := json.Marshal(fsMeta{ContentType: contentType, Size: size})
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, meta, 0o644)
}

func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrBlobNotFound
	}
	if err != nil {
		return nil, "", err
	}

	var meta fsMeta
	if raw, err := os.ReadFile(metaPath); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return f, meta.ContentType, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	_ = os.Remove(metaPath)
	return nil
}
