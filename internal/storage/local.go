package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	sidecarSuffix = ".meta"
	tempPrefix    = ".tmp-"
)

// sidecar is written next to every artifact. It caches the checksum so
// GetInfo and GetChecksum do not rehash large workbooks.
type sidecar struct {
	Checksum string    `json:"checksum"`
	Size     int64     `json:"size"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// LocalStorage keeps artifacts as plain files under a base directory.
type LocalStorage struct {
	root string
	now  func() time.Time
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	root, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path %s: %w", basePath, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", root, err)
	}
	return &LocalStorage{root: root, now: time.Now}, nil
}

func (s *LocalStorage) resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes content and its sidecar. Both go through a temp file and a
// rename, so a reader sees either the old artifact or the new one.
func (s *LocalStorage) Put(ctx context.Context, key string, content []byte, metadata *Metadata) error {
	p, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}
	if err := writeAtomic(p, content); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	side, err := json.Marshal(sidecar{
		Checksum: ComputeChecksum(content),
		Size:     int64(len(content)),
		Metadata: stamp(metadata, s.now()),
	})
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", key, err)
	}
	if err := writeAtomic(p+sidecarSuffix, side); err != nil {
		return fmt.Errorf("write metadata for %s: %w", key, err)
	}
	return nil
}

func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPrefix+filepath.Base(path))
	if err != nil {
		return err
	}
	name := tmp.Name()
	_, err = tmp.Write(content)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		os.Remove(name)
	}
	return err
}

// Get returns the content at key
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return content, nil
}

// GetInfo uses the cached checksum when the sidecar still matches the file
// size and hashes the file otherwise.
func (s *LocalStorage) GetInfo(ctx context.Context, key string) (*FileInfo, error) {
	p, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}

	info := &FileInfo{Key: key, Size: st.Size(), ModifiedAt: st.ModTime()}
	side, ok := readSidecar(p)
	if ok && side.Size == st.Size() && side.Checksum != "" {
		info.Checksum = side.Checksum
	} else if info.Checksum, err = hashFile(p); err != nil {
		return nil, fmt.Errorf("checksum %s: %w", key, err)
	}
	if ok && side.Metadata != nil {
		info.Metadata = side.Metadata
		info.ContentType = side.Metadata.ContentType
	}
	return info, nil
}

// readSidecar reports false for a missing or unreadable sidecar; metadata
// is optional.
func readSidecar(p string) (sidecar, bool) {
	var side sidecar
	raw, err := os.ReadFile(p + sidecarSuffix)
	if err != nil {
		return side, false
	}
	if json.Unmarshal(raw, &side) != nil {
		return side, false
	}
	return side, true
}

// Exists reports whether key is stored
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.resolve(ctx, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
}

// Delete removes the artifact and its sidecar
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	for _, f := range []string{p, p + sidecarSuffix} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// List walks the deepest directory the prefix names and filters by the
// full prefix. Sidecars and temp files are never listed.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	dir := s.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		if err := checkKey(prefix[:i+1]); err != nil {
			return nil, err
		}
		dir = filepath.Join(s.root, filepath.FromSlash(prefix[:i]))
	}

	keys := []string{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, sidecarSuffix) || strings.HasPrefix(name, tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetChecksum returns the SHA256 checksum of the content at key
func (s *LocalStorage) GetChecksum(ctx context.Context, key string) (string, error) {
	info, err := s.GetInfo(ctx, key)
	if err != nil {
		return "", err
	}
	return info.Checksum, nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeChecksum returns the hex SHA256 of content
func ComputeChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
