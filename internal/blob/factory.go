package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"planningsync/internal/config"
)

// Environment overrides:
//
//	PLANNINGSYNC_BLOB_DRIVER=memory|fs|s3
//	PLANNINGSYNC_BLOB_FS_PATH=<dir> (fs driver)
//	PLANNINGSYNC_BLOB_S3_BUCKET=<bucket> (s3 driver)
//	PLANNINGSYNC_BLOB_S3_PREFIX=<prefix>
//	PLANNINGSYNC_BLOB_S3_REGION=<region> (default us-east-1)
//	PLANNINGSYNC_BLOB_S3_ENDPOINT=<url> (MinIO-style endpoints)
//	PLANNINGSYNC_BLOB_S3_PATH_STYLE=true|false
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (s3 driver)

// Open constructs the archive store selected by cfg, with environment
// variables taking precedence over the file config.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := cfg.Driver
	if env := os.Getenv("PLANNINGSYNC_BLOB_DRIVER"); env != "" {
		driver = env
	}
	switch Driver(driver) {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverFilesystem:
		path := cfg.Path
		if env := os.Getenv("PLANNINGSYNC_BLOB_FS_PATH"); env != "" {
			path = env
		}
		if path == "" {
			path = "snapshots"
		}
		return NewFilesystemStore(path)
	case DriverS3:
		s3cfg := S3Config{
			Bucket:          firstNonEmpty(os.Getenv("PLANNINGSYNC_BLOB_S3_BUCKET"), cfg.Bucket),
			Prefix:          firstNonEmpty(os.Getenv("PLANNINGSYNC_BLOB_S3_PREFIX"), cfg.Prefix),
			Region:          os.Getenv("PLANNINGSYNC_BLOB_S3_REGION"),
			Endpoint:        os.Getenv("PLANNINGSYNC_BLOB_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			PathStyle:       strings.EqualFold(os.Getenv("PLANNINGSYNC_BLOB_S3_PATH_STYLE"), "true"),
		}
		return NewS3Store(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
