package backup

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver names a Sink implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Archive describes one stored backup.
type Archive struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink stores archives under flat keys. Get returns an
// absence.NotFoundError for unknown keys.
type Sink interface {
	Driver() Driver
	Put(ctx context.Context, key string, r io.Reader) (Archive, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]Archive, error)
}

// sanitizeKey forbids path traversal, absolute keys and nested paths.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return path.Clean(key), nil
}
