package badger

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*PassageRepository, *Backend) {
	t.Helper()
	repo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return repo, backend
}

func letters() []*core.Passage {
	return []*core.Passage{
		{ID: "p1", Text: "Warburg wrote to the bank.", SourceDocument: "letters", Position: 0},
		{ID: "p2", Text: "Delbanco replied in March.", SourceDocument: "letters", Position: 1},
		{ID: "p3", Text: "The firm was renamed.", SourceDocument: "minutes", Position: 0},
	}
}

func TestPassageBasics(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddPassages(ctx, letters()...)
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.False(t, added[0].InsertedAt.IsZero())

	retrieved, err := repo.GetPassage(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Delbanco replied in March.", retrieved.Text)
	assert.Equal(t, "letters", retrieved.SourceDocument)
	assert.NotNil(t, retrieved.Metadata)

	count, err := repo.CountPassages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAddPassages_Validation(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddPassages(ctx, &core.Passage{ID: "p1", SourceDocument: "doc"})
	assert.ErrorIs(t, err, core.ErrEmptyText)

	_, err = repo.AddPassages(ctx, letters()[0])
	require.NoError(t, err)
	_, err = repo.AddPassages(ctx, letters()[0])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestGetPassage_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.GetPassage(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetPassages_SameLengthAndOrder(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AddPassages(ctx, letters()...)
	require.NoError(t, err)

	result, err := repo.GetPassages(ctx, "p3", "missing", "p1")
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "p3", result[0].ID)
	assert.Nil(t, result[1])
	assert.Equal(t, "p1", result[2].ID)
}

func TestGetPassages_MalformedMetadata(t *testing.T) {
	repo, backend := newTestRepo(t)
	ctx := context.Background()
	passage := letters()[0]
	passage.Metadata = map[string]string{"archive": "Hamburg"}
	_, err := repo.AddPassages(ctx, passage)
	require.NoError(t, err)

	// Corrupt the metadata value directly
	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeMetadataKey("p1"), []byte("{broken")); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	result, err := repo.GetPassages(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, result[0])
	assert.Equal(t, "Warburg wrote to the bank.", result[0].Text)
	assert.NotNil(t, result[0].Metadata)
	assert.Empty(t, result[0].Metadata)
}

func TestUpdatePassages(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AddPassages(ctx, letters()...)
	require.NoError(t, err)

	passage, err := repo.GetPassage(ctx, "p1")
	require.NoError(t, err)
	passage.Vector = []float32{0.6, 0.8}
	passage.Metadata["embedded"] = "true"

	_, err = repo.UpdatePassages(ctx, passage)
	require.NoError(t, err)

	updated, err := repo.GetPassage(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, updated.Vector)
	assert.Equal(t, "true", updated.Metadata["embedded"])
	assert.False(t, updated.UpdatedAt.Before(updated.InsertedAt))

	_, err = repo.UpdatePassages(ctx, &core.Passage{ID: "nope", Text: "x", SourceDocument: "d"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentIndex(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// Insert out of order; the index must return position order
	passages := []*core.Passage{
		{ID: "c", Text: "third", SourceDocument: "diary", Position: 2},
		{ID: "a", Text: "first", SourceDocument: "diary", Position: 0},
		{ID: "b", Text: "second", SourceDocument: "diary", Position: 1},
		{ID: "z", Text: "other", SourceDocument: "diary-2", Position: 0},
	}
	_, err := repo.AddPassages(ctx, passages...)
	require.NoError(t, err)

	diary, err := repo.GetPassagesByDocument(ctx, "diary")
	require.NoError(t, err)
	require.Len(t, diary, 3)
	assert.Equal(t, "a", diary[0].ID)
	assert.Equal(t, "b", diary[1].ID)
	assert.Equal(t, "c", diary[2].ID)

	documents, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"diary", "diary-2"}, documents)
}

func TestDeletePassages(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AddPassages(ctx, letters()...)
	require.NoError(t, err)

	require.NoError(t, repo.DeletePassages(ctx, "p1"))
	_, err = repo.GetPassage(ctx, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	remaining, err := repo.GetPassagesByDocument(ctx, "letters")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "p2", remaining[0].ID)

	assert.ErrorIs(t, repo.DeletePassages(ctx, "p1"), storage.ErrNotFound)
}

func TestTombstonePassages(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AddPassages(ctx, letters()...)
	require.NoError(t, err)

	merged := &core.Passage{ID: "m1", Text: "Warburg wrote to the bank. Delbanco replied in March.", SourceDocument: "letters", Position: 0}
	_, err = repo.AddPassages(ctx, merged)
	require.NoError(t, err)

	require.NoError(t, repo.TombstonePassages(ctx, map[string]string{"p1": "m1", "p2": "m1"}))

	result, err := repo.GetPassages(ctx, "p1", "p2", "p3")
	require.NoError(t, err)
	assert.Equal(t, "m1", result[0].ID)
	assert.Equal(t, "m1", result[1].ID)
	assert.Equal(t, "p3", result[2].ID)

	// GetPassage does not follow tombstones
	_, err = repo.GetPassage(ctx, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := repo.CountPassages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t.Run("chains resolve to the latest survivor", func(t *testing.T) {
		final := &core.Passage{ID: "m2", Text: "everything", SourceDocument: "letters", Position: 0}
		_, err := repo.AddPassages(ctx, final)
		require.NoError(t, err)
		require.NoError(t, repo.TombstonePassages(ctx, map[string]string{"m1": "m2"}))

		result, err := repo.GetPassages(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "m2", result[0].ID)
	})
}

func TestCheckpointRepository(t *testing.T) {
	_, checkpoints, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	loaded, err := checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reembed", LastID: "p2", Processed: 2}))
	loaded, err = checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "p2", loaded.LastID)
	assert.Equal(t, 2, loaded.Processed)
	assert.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, checkpoints.ClearCheckpoint(ctx, "reembed"))
	loaded, err = checkpoints.LoadCheckpoint(ctx, "reembed")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestKeys(t *testing.T) {
	key := makeDocumentKey("letters", 7, "p1")
	assert.Equal(t, "letters", documentFromKey(key))
	assert.Equal(t, "p1", passageIDFromKey(makePassageKey("p1")))
	assert.Less(t, string(makeDocumentKey("letters", 2, "z")), string(makeDocumentKey("letters", 10, "a")))
}
