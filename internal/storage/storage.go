// Package storage keeps uploaded media objects behind a small interface with
// an S3-compatible and an in-memory backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"artenis/internal/config"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore stores media bytes under a key and resolves public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	// KeyFromURL reverses URL for objects owned by this store.
	KeyFromURL(url string) (string, bool)
}

// New builds the backend selected by MEDIA_STORAGE.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.MediaStorage {
	case config.StorageS3:
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
	case config.StorageMemory, "":
		return NewMemoryStore("/media"), nil
	default:
		return nil, fmt.Errorf("unknown media storage %q", cfg.MediaStorage)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func trimBase(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	key, ok := strings.CutPrefix(url, prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
