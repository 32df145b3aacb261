package ingestion

import "errors"

var (
	// ErrPassageRepositoryRequired is returned when a passage repository is not provided.
	ErrPassageRepositoryRequired = errors.New("passage repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrDocumentRequired is returned when a document name is empty.
	ErrDocumentRequired = errors.New("document name required")

	// ErrInvalidChunkSize is returned for a chunk size below one word.
	ErrInvalidChunkSize = errors.New("chunk size must be at least one word")

	// ErrInvalidChunkOverlap is returned for an overlap that is negative or
	// not smaller than the chunk size.
	ErrInvalidChunkOverlap = errors.New("chunk overlap must be between zero and the chunk size")
)
