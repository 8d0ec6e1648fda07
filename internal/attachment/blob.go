// Package attachment stores the files attached to incidents.
package attachment

import (
	"context"
	"errors"
	"io"
)

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverFS     Driver = "fs"
	DriverS3     Driver = "s3"
)

var ErrBlobNotFound = errors.New("attachment: blob not found")

// BlobStore keeps opaque bytes under a key. Delete of a missing key is not
// an error.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	Driver() Driver
}
