// Package storage persists uploaded media objects.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"circle/internal/config"

	"github.com/google/uuid"
)

// BlobStore stores media objects addressed by key and returns their public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewObjectKey builds a unique key such as "posts/2026/10/<uuid>.webp".
func NewObjectKey(prefix, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	now := time.Now().UTC()
	name := uuid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(prefix, fmt.Sprintf("%04d/%02d", now.Year(), int(now.Month())), name)
}

// New returns the store selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageDriver {
	case "minio":
		return NewMinIOStore(ctx, MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
	default:
		return NewLocalStore(cfg.UploadDir, "/uploads")
	}
}
