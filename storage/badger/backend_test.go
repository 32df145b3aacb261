package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/archivist/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	backend, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
	assert.Nil(t, backend)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())
}

func TestFindSimilar_NoPassages(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.FindSimilar(context.Background(), []float32{0.1, 0.2, 0.3}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func seedVectors(t *testing.T, repo *PassageRepository) {
	t.Helper()
	passages := []*core.Passage{
		{ID: "high", Text: "High similarity", SourceDocument: "doc", Position: 0, Vector: []float32{1.0, 0.0, 0.0},
			Metadata: map[string]string{"year": "1918"}},
		{ID: "medium", Text: "Medium similarity", SourceDocument: "doc", Position: 1, Vector: []float32{0.7, 0.3, 0.0}},
		{ID: "low", Text: "Low similarity", SourceDocument: "doc", Position: 2, Vector: []float32{0.3, 0.7, 0.0}},
		{ID: "none", Text: "No vector yet", SourceDocument: "doc", Position: 3},
	}
	_, err := repo.AddPassages(context.Background(), passages...)
	require.NoError(t, err)
}

func TestFindSimilar_ThresholdFiltering(t *testing.T) {
	repo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	seedVectors(t, repo)

	ctx := context.Background()
	queryVector := []float32{1.0, 0.0, 0.0}

	t.Run("high threshold", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.95, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "high", results[0].Passage.ID)
		assert.Equal(t, "1918", results[0].Passage.Metadata["year"])
	})

	t.Run("medium threshold", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.6, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("low threshold skips passages without vectors", func(t *testing.T) {
		results, err := backend.FindSimilar(ctx, queryVector, 0.2, 10)
		require.NoError(t, err)
		assert.Len(t, results, 3)
		for i := 0; i < len(results)-1; i++ {
			assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
		}
	})
}

func TestFindSimilar_LimitResults(t *testing.T) {
	repo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	seedVectors(t, repo)

	results, err := repo.FindSimilar(context.Background(), []float32{1.0, 0.0, 0.0}, 0.0, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].Passage.ID)
	assert.Equal(t, "medium", results[1].Passage.ID)

	results, err = repo.FindSimilar(context.Background(), []float32{1.0, 0.0, 0.0}, 0.0, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 1.0, dotProduct([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 0.0, dotProduct([]float32{1, 0}, []float32{0, 1}), 1e-6)
	// Mismatched lengths use the common prefix
	assert.InDelta(t, 2.0, dotProduct([]float32{1, 1, 5}, []float32{1, 1}), 1e-6)
}
