package attachment

import (
	"context"
	"fmt"

	"github.com/hackgods/dental-clinic-records/internal/config"
)

// Open builds the blob store selected by cfg.BlobDriver.
func Open(ctx context.Context, cfg config.Config) (BlobStore, error) {
	switch Driver(cfg.BlobDriver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFS:
		return NewFSStore(cfg.BlobFSRoot)
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
