package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage runs the same contract checks against every backend.
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	content := []byte(`{"ok":true}`)

	require.NoError(t, s.Put(ctx, "runs/2026-01-02/hybrid/r1/result.json", content, &Metadata{ContentType: "application/json", RunID: "r1"}))
	require.NoError(t, s.Put(ctx, "runs/2026-01-02/hybrid/r1/allocations.csv", []byte("a,b\n"), nil))
	require.NoError(t, s.Put(ctx, "batches/2026-01-02/b1/summary.json", []byte("{}"), nil))

	got, err := s.Get(ctx, "runs/2026-01-02/hybrid/r1/result.json")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	info, err := s.GetInfo(ctx, "runs/2026-01-02/hybrid/r1/result.json")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, ComputeChecksum(content), info.Checksum)
	assert.Equal(t, "application/json", info.ContentType)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, "r1", info.Metadata.RunID)
	assert.False(t, info.Metadata.CreatedAt.IsZero())

	keys, err := s.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/2026-01-02/hybrid/r1/allocations.csv",
		"runs/2026-01-02/hybrid/r1/result.json",
	}, keys)

	exists, err := s.Exists(ctx, "batches/2026-01-02/b1/summary.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "batches/2026-01-02/b1/summary.json"))
	exists, err = s.Exists(ctx, "batches/2026-01-02/b1/summary.json")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Get(ctx, "missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestLocalStorage checks the filesystem backend.
func TestLocalStorage(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exerciseStorage(t, s)
}

// TestMemoryStorage checks the in-memory backend.
func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

// TestNewRejectsUnknownType fails fast on configuration typos.
func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New("s4", t.TempDir())
	assert.Error(t, err)
}

// TestBuildRunKey sanitizes scenario names.
func TestBuildRunKey(t *testing.T) {
	date := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "runs/2026-03-04/my_scenario/abc/result.json", BuildRunKey(date, "my/scenario", "abc", "result.json"))
	assert.Equal(t, "runs/2026-03-04/unnamed/abc/x.csv", BuildRunKey(date, " ", "abc", "x.csv"))
	assert.Equal(t, "batches/2026-03-04/b/summary.json", BuildBatchKey(date, "b", "summary.json"))
}

func TestKeysOutsideRootAreRejected(t *testing.T) {
	ctx := context.Background()
	for name, s := range map[string]Storage{"local": mustLocal(t), "memory": NewMemoryStorage()} {
		for _, key := range []string{"", "/etc/passwd", "../x.json", "runs/../../x", `runs\x`, "runs//x"} {
			err := s.Put(ctx, key, []byte("x"), nil)
			assert.ErrorIs(t, err, ErrInvalidKey, "%s %q", name, key)
		}
	}
}

func TestLocalStorageCachesChecksum(t *testing.T) {
	ctx := context.Background()
	s := mustLocal(t)
	content := []byte("sku_id,store_id\nA,S1\n")
	require.NoError(t, s.Put(ctx, "runs/d/x/r/allocations.csv", content, nil))

	sum, err := s.GetChecksum(ctx, "runs/d/x/r/allocations.csv")
	require.NoError(t, err)
	assert.Equal(t, ComputeChecksum(content), sum)

	keys, err := s.List(ctx, "runs/d/x/r/alloc")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/d/x/r/allocations.csv"}, keys)

	keys, err = s.List(ctx, "nothing/here/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalStorageHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mustLocal(t).Put(ctx, "a.json", []byte("{}"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}
