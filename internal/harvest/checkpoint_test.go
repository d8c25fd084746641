package harvest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/literature-harvester/internal/domain"
)

func TestFileCheckpointStore_LoadMissing(t *testing.T) {
	s := NewFileCheckpointStore(filepath.Join(t.TempDir(), "cp.json"))

	cp, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cp.SourceOffsets)
	assert.Empty(t, cp.ProcessedFingerprints)
	assert.Zero(t, cp.TotalCollected)
	assert.True(t, cp.LastRun.IsZero())
}

func TestFileCheckpointStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cp.json")
	s := NewFileCheckpointStore(path)

	cp := NewCheckpoint()
	cp.Advance(domain.SourceTypePubMed, 40)
	cp.Advance(domain.SourceTypeArXiv, 0)
	cp.ProcessedFingerprints = []string{"zeta", "alpha", "alpha", "mid"}
	cp.TotalCollected = 12
	cp.TotalImported = 9
	cp.LastRun = time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, cp))

	t.Run("document layout", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, map[string]any{"pubmed": float64(40)}, raw["sourceOffsets"])
		assert.Equal(t, []any{"alpha", "mid", "zeta"}, raw["processedFingerprints"])
		assert.Equal(t, float64(12), raw["totalCollected"])
		assert.Equal(t, float64(9), raw["totalImported"])
		assert.Equal(t, "2026-01-05T10:00:00Z", raw["lastRun"])
	})

	t.Run("round trip", func(t *testing.T) {
		loaded, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 40, loaded.Offset(domain.SourceTypePubMed))
		assert.Equal(t, 0, loaded.Offset(domain.SourceTypeArXiv))
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, loaded.ProcessedFingerprints)
		assert.True(t, cp.LastRun.Equal(loaded.LastRun))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "cp.json", entries[0].Name())
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		cp.Advance(domain.SourceTypePubMed, 20)
		require.NoError(t, s.Save(ctx, cp))

		loaded, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 60, loaded.Offset(domain.SourceTypePubMed))
	})
}

func TestFileCheckpointStore_LoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{"},
		{name: "negative offset", content: `{"sourceOffsets":{"pubmed":-1}}`},
		{name: "imported exceeds collected", content: `{"totalCollected":1,"totalImported":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cp.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewFileCheckpointStore(path).Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestFileCheckpointStore_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	s := NewFileCheckpointStore(path)
	require.NoError(t, s.Save(context.Background(), NewCheckpoint()))

	require.NoError(t, s.Reset())
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, s.Reset())
}

func TestCheckpoint_Advance(t *testing.T) {
	cp := NewCheckpoint()
	cp.Advance(domain.SourceTypeOpenAlex, 25)
	cp.Advance(domain.SourceTypeOpenAlex, -5)
	cp.Advance(domain.SourceTypeOpenAlex, 25)

	assert.Equal(t, 50, cp.Offset(domain.SourceTypeOpenAlex))
	offsets := cp.Offsets()
	offsets["openalex"] = 0
	assert.Equal(t, 50, cp.Offset(domain.SourceTypeOpenAlex))
}
