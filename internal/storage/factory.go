package storage

import (
	"fmt"

	"github.com/rowjay/db-admin-utility/internal/config"
)

// New builds the archive repository named by cfg.Backend. An empty
// backend means local, matching the config default.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "local", "":
		path := cfg.Local.Path
		if path == "" {
			path = "./dumps"
		}
		return NewLocal(path), nil
	case "s3":
		if cfg.S3.Endpoint == "" || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("storage.s3.endpoint and storage.s3.bucket must be set for the s3 backend")
		}
		return NewS3(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.SessionToken, cfg.S3.UseSSL, cfg.S3.ForcePathStyle, cfg.S3.TLSInsecureSkip)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected local or s3)", cfg.Backend)
	}
}
