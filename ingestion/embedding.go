package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/reembed"
	"github.com/poiesic/archivist/storage"
)

// embeddingProcessor attaches embedding vectors to stored passages.
type embeddingProcessor struct {
	repository storage.PassageRepository
	embedder   ai.Embedder
	logger     *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(repository storage.PassageRepository, embedder ai.Embedder, logger *slog.Logger) (processor, error) {
	if repository == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		repository: repository,
		embedder:   embedder,
		logger:     logger.With("processor", "embeddings"),
	}, nil
}

// process generates embeddings for the specified passages.
func (ep *embeddingProcessor) process(ctx context.Context, ids ...string) error {
	ep.logger.Info("processing passages for embeddings", "passages", len(ids))

	fetched, err := ep.repository.GetPassages(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving passages", "err", err)
		return err
	}

	// Passages merged away since they were queued resolve to their survivor
	// or to nothing
	passages := make([]*core.Passage, 0, len(fetched))
	seen := make(map[string]bool, len(fetched))
	for _, passage := range fetched {
		if passage == nil || seen[passage.ID] {
			continue
		}
		seen[passage.ID] = true
		passages = append(passages, passage)
	}
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}

	ep.logger.Debug("generating embeddings for passages", "passages", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(embeddings) != len(passages) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(passages), len(embeddings))
	}

	for i := range embeddings {
		passages[i].Vector = reembed.NormalizeVector(embeddings[i])
	}

	_, err = ep.repository.UpdatePassages(ctx, passages...)
	return err
}
