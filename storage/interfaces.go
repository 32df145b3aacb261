package storage

import (
	"context"

	"github.com/poiesic/archivist/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds passages similar to the given vector.
	// Returns passages with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredPassage, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// PassageRepository is the passage store consumed by retrieval, ingestion,
// deduplication and reembedding.
type PassageRepository interface {
	Repository

	// AddPassages stores new passages. Every passage must pass core.ValidatePassage.
	// Sets InsertedAt and UpdatedAt.
	// Returns ErrDuplicateKey if a passage with the same ID already exists.
	AddPassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error)

	// UpdatePassages replaces existing passages (typically to attach vectors).
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any passage doesn't exist.
	UpdatePassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error)

	// DeletePassages removes passages and their document index entries.
	// Returns ErrNotFound if any passage doesn't exist.
	DeletePassages(ctx context.Context, ids ...string) error

	// TombstonePassages deletes every key of rewrite and records a redirect
	// to its value, so later lookups of a stale id resolve to the survivor.
	TombstonePassages(ctx context.Context, rewrite map[string]string) error

	// GetPassage retrieves a single passage by ID.
	// Returns ErrNotFound if the passage doesn't exist.
	GetPassage(ctx context.Context, id string) (*core.Passage, error)

	// GetPassages retrieves passages in one batched lookup.
	// The result has the same length and order as ids. Tombstoned ids resolve
	// to their surviving passage; unknown ids yield nil entries. A passage whose
	// metadata is missing or malformed is returned with empty metadata.
	GetPassages(ctx context.Context, ids ...string) ([]*core.Passage, error)

	// GetPassagesByDocument returns the passages of one document ordered by position.
	GetPassagesByDocument(ctx context.Context, sourceDocument string) ([]*core.Passage, error)

	// ListDocuments returns the names of all documents with at least one passage, sorted.
	ListDocuments(ctx context.Context) ([]string, error)

	// CountPassages returns the number of live passages.
	CountPassages(ctx context.Context) (int, error)
}

// CheckpointRepository persists processor progress so long jobs can resume.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for its processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for a processor type, or nil if none exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a processor type.
	ClearCheckpoint(ctx context.Context, processorType string) error
}
