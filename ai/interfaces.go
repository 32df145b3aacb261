package ai

import "context"

// Embedder turns text into vectors for semantic search.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is a single call to a remote text-generation service.
//
// Implementations never retry. A failed call returns a *Failure describing
// what went wrong so callers can decide on retries without inspecting
// service-specific messages. A length-capped response is reported as a
// *Failure of kind KindTruncated carrying the partial text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFactory builds a Generator bound to one credential.
// It is used to switch keys after quota exhaustion.
type GeneratorFactory func(credential Credential) (Generator, error)

// AIProvider aggregates the AI services used by archivist.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the text generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
