package blob

import (
	"context"
	"fmt"
)

// Config selects and parameterises a blob backend.
type Config struct {
	Driver Driver
	FSRoot string // directory root when Driver is fs (default ./blobdata)
	S3     S3Config
}

// Open constructs the Store described by cfg. An empty driver defaults to fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
