package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenledger/verifier/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutGet(t *testing.T) {
	store := openTestStore(t)

	result := models.VerificationResult{
		TokenID: "123",
		IsValid: true,
		Metadata: &models.TokenMetadata{
			CropType:   "coffee",
			QuantityKg: 50,
			OriginFarm: "Finca Alta",
		},
		VerificationTimeMs: 42,
	}

	store.Put("123", result)

	entry := store.Get("123")
	require.NotNil(t, entry)
	assert.Equal(t, "123", entry.TokenID)
	assert.True(t, entry.Result.IsValid)
	require.NotNil(t, entry.Result.Metadata)
	assert.Equal(t, "coffee", entry.Result.Metadata.CropType)
	assert.WithinDuration(t, time.Now(), entry.CachedAt, 5*time.Second)
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	assert.Nil(t, store.Get("does-not-exist"))
}

func TestStore_PutOverwrites(t *testing.T) {
	store := openTestStore(t)

	store.Put("7", models.VerificationResult{TokenID: "7", IsValid: false, Error: "not found"})
	store.Put("7", models.VerificationResult{TokenID: "7", IsValid: true})

	entry := store.Get("7")
	require.NotNil(t, entry)
	assert.True(t, entry.Result.IsValid)
	assert.Empty(t, entry.Result.Error)
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		entry  *Entry
		maxAge time.Duration
		want   bool
	}{
		{name: "nil entry", entry: nil, maxAge: time.Hour, want: false},
		{name: "fresh", entry: &Entry{CachedAt: now.Add(-time.Minute)}, maxAge: time.Hour, want: true},
		{name: "stale", entry: &Entry{CachedAt: now.Add(-2 * time.Hour)}, maxAge: time.Hour, want: false},
		{name: "boundary inside", entry: &Entry{CachedAt: now.Add(-time.Second)}, maxAge: time.Minute, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFresh(tt.entry, tt.maxAge))
		})
	}
}

func TestStore_Prune(t *testing.T) {
	store := openTestStore(t)

	store.Put("old", models.VerificationResult{TokenID: "old", IsValid: true})
	store.Put("new", models.VerificationResult{TokenID: "new", IsValid: true})

	// Age the first entry directly.
	_, err := store.db.Exec(
		"UPDATE verifications SET cached_at = ? WHERE token_id = ?",
		time.Now().Add(-48*time.Hour).Unix(), "old")
	require.NoError(t, err)

	removed := store.Prune(24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.Nil(t, store.Get("old"))
	assert.NotNil(t, store.Get("new"))
}

func TestStore_List(t *testing.T) {
	store := openTestStore(t)

	store.Put("1", models.VerificationResult{TokenID: "1", IsValid: true})
	store.Put("2", models.VerificationResult{TokenID: "2", IsValid: false, Error: "batch not found"})

	entries := store.List()
	assert.Len(t, entries, 2)
}

func TestStore_NilStoreNoOps(t *testing.T) {
	var store *Store

	// None of these may panic on an unavailable cache.
	store.Put("1", models.VerificationResult{TokenID: "1"})
	assert.Nil(t, store.Get("1"))
	assert.Zero(t, store.Prune(time.Hour))
	assert.Nil(t, store.List())
	assert.NoError(t, store.Close())
}
