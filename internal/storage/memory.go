package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	content    []byte
	metadata   *Metadata
	modifiedAt time.Time
}

// MemoryStorage implements Storage in process memory. It backs tests and
// servers that do not persist artifacts.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

// Put stores a copy of content
func (s *MemoryStorage) Put(ctx context.Context, key string, content []byte, metadata *Metadata) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{
		content:    append([]byte(nil), content...),
		metadata:   stamp(metadata, now),
		modifiedAt: now,
	}
	return nil
}

// Get retrieves a copy of the content at key
func (s *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), obj.content...), nil
}

// GetInfo retrieves file information without content
func (s *MemoryStorage) GetInfo(ctx context.Context, key string) (*FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	info := &FileInfo{
		Key:        key,
		Size:       int64(len(obj.content)),
		Checksum:   ComputeChecksum(obj.content),
		ModifiedAt: obj.modifiedAt,
		Metadata:   obj.metadata,
	}
	if obj.metadata != nil {
		info.ContentType = obj.metadata.ContentType
	}
	return info, nil
}

// Exists checks if key is stored
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Delete removes key
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// List returns the sorted keys with the given prefix
func (s *MemoryStorage) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := []string{}
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetChecksum returns the SHA256 checksum of the content at key
func (s *MemoryStorage) GetChecksum(ctx context.Context, key string) (string, error) {
	content, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return ComputeChecksum(content), nil
}
