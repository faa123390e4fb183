package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidKey is returned for empty, absolute or escaping keys.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Metadata describes a stored run artifact
type Metadata struct {
	ContentType string            `json:"contentType,omitempty"`
	RunID       string            `json:"runId,omitempty"`
	Scenario    string            `json:"scenario,omitempty"`
	Format      string            `json:"format,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// FileInfo contains information about a stored file
type FileInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	ContentType string    `json:"contentType,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Storage keeps run artifacts under slash-separated keys.
type Storage interface {
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GetInfo returns size, checksum and metadata without the content.
	GetInfo(ctx context.Context, key string) (*FileInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
	// List returns the sorted keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	GetChecksum(ctx context.Context, key string) (string, error)
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal  StorageType = "local"
	StorageTypeMemory StorageType = "memory"
)

// New creates the storage backend named by storageType.
func New(storageType StorageType, basePath string) (Storage, error) {
	switch storageType {
	case StorageTypeLocal, "":
		return NewLocalStorage(basePath)
	case StorageTypeMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("storage: unknown type %q", storageType)
	}
}

// checkKey rejects keys that would resolve outside the storage root.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if path.Clean(key) != strings.TrimSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// stamp returns a copy of m with CreatedAt set.
func stamp(m *Metadata, now time.Time) *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now.UTC()
	}
	return &c
}
