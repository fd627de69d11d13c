// Package storage is the archive repository: a keyed object store
// (local filesystem or S3-compatible) where dump archives are parked
// and fetched back for restore.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
	ETag     string
	Metadata map[string]string
}

type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, metadata map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DumpKey builds a normalized object key for a database dump.
func DumpKey(prefix, dbName, format string, when time.Time) string {
	ext := "dump"
	if format == "zip" {
		ext = "zip"
	}
	parts := []string{}
	if prefix != "" {
		parts = append(parts, strings.Trim(prefix, "/"))
	}
	parts = append(parts, dbName,
		fmt.Sprintf("%s_%s.%s", dbName, when.UTC().Format("20060102T150405Z"), ext))
	return path.Join(parts...)
}

// DumpPrefix is the listing prefix for one database's dumps.
func DumpPrefix(prefix, dbName string) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, strings.Trim(prefix, "/"))
	}
	if dbName != "" {
		parts = append(parts, dbName)
	}
	return path.Join(parts...)
}
