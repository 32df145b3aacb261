package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
	"github.com/poiesic/archivist/storage/badger"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*badger.PassageRepository, storage.CheckpointRepository) {
	repo, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo, checkpoints
}

// seedPassages stores count passages per document and returns them in
// document order.
func seedPassages(t *testing.T, repo storage.PassageRepository, count int, documents ...string) []*core.Passage {
	var passages []*core.Passage
	for _, document := range documents {
		for i := 0; i < count; i++ {
			passages = append(passages, &core.Passage{
				ID:             core.PassageIDFor(document, i),
				Text:           fmt.Sprintf("%s passage %d", document, i),
				SourceDocument: document,
				Position:       i,
			})
		}
	}
	added, err := repo.AddPassages(context.Background(), passages...)
	require.NoError(t, err)
	return added
}

func ids(passages []*core.Passage) []string {
	result := make([]string, len(passages))
	for i, p := range passages {
		result[i] = p.ID
	}
	return result
}
