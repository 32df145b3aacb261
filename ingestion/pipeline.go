package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
	"github.com/poiesic/archivist/termindex"
)

// DefaultEmbedBatchSize is the number of passages sent in one embedding request.
const DefaultEmbedBatchSize = 32

// Pipeline orchestrates the ingestion of source documents.
// Passages are stored synchronously; embeddings are generated on a worker pool.
type Pipeline struct {
	repository     storage.PassageRepository
	builder        *termindex.Builder
	embeddingPool  *ants.Pool
	embeddingProc  processor
	chunkSize      int
	chunkOverlap   int
	embedBatchSize int
	logger         *slog.Logger

	pending sync.WaitGroup
	mu      sync.Mutex
	errs    []error
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithChunking sets the chunk size and overlap, in words.
// Default is DefaultChunkSize and DefaultChunkOverlap.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidChunkSize
		}
		if overlap < 0 || overlap >= size {
			return ErrInvalidChunkOverlap
		}
		p.chunkSize = size
		p.chunkOverlap = overlap
		return nil
	}
}

// WithEmbedBatchSize sets how many passages are embedded per request.
// Default is DefaultEmbedBatchSize.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.embedBatchSize = size
		return nil
	}
}

// WithTermBuilder sets the builder that accumulates the term index.
// Default is a fresh termindex.NewBuilder().
func WithTermBuilder(builder *termindex.Builder) Option {
	return func(p *Pipeline) error {
		if builder != nil {
			p.builder = builder
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.PassageRepository, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository:     repository,
		builder:        termindex.NewBuilder(),
		embeddingPool:  embeddingPool,
		chunkSize:      DefaultChunkSize,
		chunkOverlap:   DefaultChunkOverlap,
		embedBatchSize: DefaultEmbedBatchSize,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Processors are created after options so they get the final logger
	embeddingProc, err := newEmbeddingProcessor(repository, provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Builder returns the term index builder fed by this pipeline.
func (p *Pipeline) Builder() *termindex.Builder {
	return p.builder
}

// Ingest chunks text, stores one passage per chunk under document and queues
// the passages for embedding. Passage ids derive from document and position,
// so ingesting the same document twice fails with storage.ErrDuplicateKey.
// Every passage receives a copy of metadata.
func (p *Pipeline) Ingest(ctx context.Context, document, text string, metadata map[string]string) ([]*core.Passage, error) {
	if document == "" {
		return nil, ErrDocumentRequired
	}

	chunks, err := Chunk(text, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		p.logger.Warn("document has no text", "document", document)
		return nil, nil
	}

	passages := make([]*core.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = &core.Passage{
			ID:             core.PassageIDFor(document, i),
			Text:           chunk,
			SourceDocument: document,
			Position:       i,
			Metadata:       maps.Clone(metadata),
		}
	}

	added, err := p.repository.AddPassages(ctx, passages...)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(added))
	for i, passage := range added {
		ids[i] = passage.ID
		p.builder.Add(passage.ID, passage.Text)
	}
	p.logger.Info("stored document", "document", document, "passages", len(added))

	for start := 0; start < len(ids); start += p.embedBatchSize {
		p.submit(ids[start:min(start+p.embedBatchSize, len(ids))])
	}

	return added, nil
}

func (p *Pipeline) submit(ids []string) {
	p.pending.Add(1)
	err := p.embeddingPool.Submit(func() {
		defer p.pending.Done()
		if err := p.embeddingProc.process(context.Background(), ids...); err != nil {
			p.logger.Error("error processing embeddings", "err", err)
			p.record(err)
		}
	})
	if err != nil {
		p.pending.Done()
		p.logger.Error("error queueing embeddings", "err", err)
		p.record(err)
	}
}

func (p *Pipeline) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

// Wait blocks until every queued embedding has finished and returns the
// errors collected since the previous Wait, joined.
func (p *Pipeline) Wait() error {
	p.pending.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}

// Release waits for queued embeddings and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.pending.Wait()
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
