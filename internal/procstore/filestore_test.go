package procstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robgallardof/multig/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmptyMap(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "processes.json"))

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplaceAndLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processes.json")
	store := NewFileStore(path)

	id := uuid.New()
	want := map[uuid.UUID]domain.ProcessEntry{
		id: {
			ProfileID: id,
			PID:       4242,
			StartedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
			URL:       "https://example.com",
		},
	}
	require.NoError(t, store.Replace(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReplace_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "processes.json")
	store := NewFileStore(path)

	require.NoError(t, store.Replace(map[uuid.UUID]domain.ProcessEntry{}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReplace_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processes.json")
	store := NewFileStore(path)

	id := uuid.New()
	require.NoError(t, store.Replace(map[uuid.UUID]domain.ProcessEntry{
		id: {ProfileID: id, PID: 1},
	}))
	require.NoError(t, store.Replace(map[uuid.UUID]domain.ProcessEntry{}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processes.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path)
	_, err := store.Load()
	assert.Error(t, err)
}
