// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package archivist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/ai/openai"
	"github.com/poiesic/archivist/config"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/dedupe"
	"github.com/poiesic/archivist/generation"
	"github.com/poiesic/archivist/ingestion"
	"github.com/poiesic/archivist/reembed"
	"github.com/poiesic/archivist/search"
	"github.com/poiesic/archivist/storage"
	"github.com/poiesic/archivist/storage/badger"
	"github.com/poiesic/archivist/synthesis"
	"github.com/poiesic/archivist/termindex"
)

// ErrNoPassages is returned by Ask when retrieval finds nothing to narrate.
var ErrNoPassages = errors.New("no passages found for question")

// Archive wires storage, the term index and the AI services together.
type Archive struct {
	config      *config.Config
	backend     *badger.Backend
	passages    *badger.PassageRepository
	checkpoints *badger.CheckpointRepository
	provider    ai.AIProvider
	keyRing     *ai.KeyRing
	credential  ai.Credential
	factory     ai.GeneratorFactory
	logger      *slog.Logger

	mu          sync.Mutex
	index       *termindex.Index
	annotations *termindex.Annotations
}

type archiveOptions struct {
	provider ai.AIProvider
	factory  ai.GeneratorFactory
	inMemory bool
	logger   *slog.Logger
}

// Option configures an Archive.
type Option func(*archiveOptions) error

// WithProvider replaces the OpenAI-compatible provider built from the config.
// Key rotation is disabled unless WithGeneratorFactory is also given.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *archiveOptions) error {
		o.provider = provider
		return nil
	}
}

// WithGeneratorFactory sets how generators are rebuilt after key rotation.
func WithGeneratorFactory(factory ai.GeneratorFactory) Option {
	return func(o *archiveOptions) error {
		o.factory = factory
		return nil
	}
}

// WithInMemory keeps the passage store in memory; paths.database is ignored.
func WithInMemory() Option {
	return func(o *archiveOptions) error {
		o.inMemory = true
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *archiveOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Open opens the passage store named by cfg and builds the AI provider.
// A nil cfg uses config.Default(). The term index is loaded on first use.
func Open(cfg *config.Config, opts ...Option) (*Archive, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &archiveOptions{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	keyRing := cfg.KeyRing()
	credential, err := keyRing.Current(context.Background())
	if err != nil {
		// Local OpenAI-compatible servers accept requests without a key
		credential = ai.Credential{}
	}

	provider := options.provider
	factory := options.factory
	if provider == nil {
		provider, err = openai.NewProvider(&cfg.AI, credential)
		if err != nil {
			return nil, err
		}
		if factory == nil {
			factory = openai.NewGeneratorFactory(&cfg.AI)
		}
	}

	backend, err := badger.OpenBackend(cfg.Paths.Database, options.inMemory)
	if err != nil {
		provider.Close()
		return nil, err
	}

	passages, err := badger.NewPassageRepository(backend)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Archive{
		config:      cfg,
		backend:     backend,
		passages:    passages,
		checkpoints: badger.NewCheckpointRepository(backend),
		provider:    provider,
		keyRing:     keyRing,
		credential:  credential,
		factory:     factory,
		logger:      options.logger,
	}, nil
}

// Close releases the AI provider and the passage store.
func (a *Archive) Close() error {
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}

	if err := a.passages.Close(); err != nil {
		a.logger.Error("error closing passage repository", "err", err)
		return err
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Config returns the configuration the archive was opened with.
func (a *Archive) Config() *config.Config {
	return a.config
}

func (a *Archive) PassageRepository() storage.PassageRepository {
	return a.passages
}

func (a *Archive) CheckpointRepository() storage.CheckpointRepository {
	return a.checkpoints
}

func (a *Archive) Provider() ai.AIProvider {
	return a.provider
}

// Index returns the term index, loading it on first use.
// A missing index file yields termindex.ErrIndexMissing.
func (a *Archive) Index() (*termindex.Index, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index == nil {
		index, err := termindex.Load(a.config.Paths.TermIndex)
		if err != nil {
			return nil, err
		}
		a.index = index
	}
	return a.index, nil
}

// Annotations returns the annotation tables, loading them on first use.
func (a *Archive) Annotations() (*termindex.Annotations, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.annotations == nil {
		annotations, err := termindex.LoadAnnotations(a.config.Paths.AnnotationTexts, a.config.Paths.AnnotationLinks)
		if err != nil {
			return nil, err
		}
		a.annotations = annotations
	}
	return a.annotations, nil
}

func (a *Archive) invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.index = nil
	a.annotations = nil
}

// NewSearcher builds a retrieval engine over the store, the term index and
// the annotations, configured from the retrieval section.
func (a *Archive) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	index, err := a.Index()
	if err != nil {
		return nil, err
	}
	annotations, err := a.Annotations()
	if err != nil {
		return nil, err
	}

	retrieval := a.config.Retrieval
	defaults := []search.Option{
		search.WithLogger(a.logger),
		search.WithAnnotations(annotations),
		search.WithMinSimilarity(retrieval.MinSimilarity),
		search.WithAssociationLimit(retrieval.AssociationLimit),
	}
	return search.NewSearcher(a.passages, index, a.provider, append(defaults, opts...)...)
}

// NewGenerationClient builds a resilient generation client using the
// configured policy. Quota exhaustion rotates through the configured keys
// when a generator factory is available.
func (a *Archive) NewGenerationClient(opts ...generation.Option) (*generation.Client, error) {
	defaults := []generation.Option{
		generation.WithLogger(a.logger),
		generation.WithPolicy(a.config.Generation),
	}
	if a.factory != nil && a.keyRing.Len() > 0 {
		defaults = append(defaults, generation.WithCredentials(a.keyRing, a.credential, a.factory))
	}
	return generation.NewClient(a.provider.Generator(), append(defaults, opts...)...)
}

// NewOrchestrator builds a batch orchestrator over caller using the
// synthesis section.
func (a *Archive) NewOrchestrator(caller synthesis.Caller, opts ...synthesis.Option) (*synthesis.Orchestrator, error) {
	defaults := []synthesis.Option{
		synthesis.WithLogger(a.logger),
		synthesis.WithConfig(a.config.Synthesis),
	}
	return synthesis.NewOrchestrator(caller, append(defaults, opts...)...)
}

// Answer is the outcome of Ask.
type Answer struct {
	Narrative string
	Retrieval *core.RetrievalResult
	Stats     *synthesis.Stats
}

// Ask retrieves passages for question and narrates them in batches.
// The retrieval result is returned alongside any generation error.
func (a *Archive) Ask(ctx context.Context, question string, opts ...synthesis.Option) (*Answer, error) {
	searcher, err := a.NewSearcher()
	if err != nil {
		return nil, err
	}
	result, err := searcher.Retrieve(ctx, question, a.config.Retrieval.KeywordLimit, a.config.Retrieval.SemanticLimit)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Retrieval: result}
	if len(result.Passages) == 0 {
		return answer, ErrNoPassages
	}

	client, err := a.NewGenerationClient()
	if err != nil {
		return answer, err
	}
	orchestrator, err := a.NewOrchestrator(client, opts...)
	if err != nil {
		return answer, err
	}

	answer.Narrative, answer.Stats, err = orchestrator.RunWithStats(ctx, question, result.Passages, synthesis.DefaultPromptBuilder)
	return answer, err
}

// NewIngestionPipeline builds an ingestion pipeline configured from the
// ingestion section. Its term builder starts from the existing index file
// when there is one, so repeated ingests extend the index.
func (a *Archive) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	builder := termindex.NewBuilder()
	file, err := termindex.ReadFile(a.config.Paths.TermIndex)
	switch {
	case err == nil:
		builder = termindex.NewBuilderFrom(file)
	case !errors.Is(err, termindex.ErrIndexMissing):
		return nil, err
	}

	settings := a.config.Ingestion
	defaults := []ingestion.Option{
		ingestion.WithLogger(a.logger),
		ingestion.WithPoolSize(settings.PoolSize),
		ingestion.WithChunking(settings.ChunkSize, settings.ChunkOverlap),
		ingestion.WithEmbedBatchSize(settings.EmbedBatchSize),
		ingestion.WithTermBuilder(builder),
	}
	return ingestion.NewPipeline(a.passages, a.provider, append(defaults, opts...)...)
}

// SaveIndex ranks associations and writes the builder's index file.
func (a *Archive) SaveIndex(builder *termindex.Builder) error {
	limit := a.config.Retrieval.AssociationLimit
	if limit == 0 {
		limit = termindex.DefaultAssociationLimit
	}
	builder.ComputeAssociations(limit)
	if err := termindex.WriteFile(a.config.Paths.TermIndex, builder.Build()); err != nil {
		return fmt.Errorf("writing term index: %w", err)
	}
	a.invalidate()
	return nil
}

// Dedupe merges overlapping passages in the store, then rewrites the term
// index and annotation links so no entry names a consumed passage.
func (a *Archive) Dedupe(ctx context.Context, opts ...dedupe.Option) (*dedupe.Result, error) {
	groups, err := dedupe.GroupByDocument(ctx, a.passages)
	if err != nil {
		return nil, err
	}

	result, err := dedupe.Dedupe(groups, append([]dedupe.Option{dedupe.WithLogger(a.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if len(result.Rewrite) == 0 {
		return result, nil
	}

	if err := a.embedMerged(ctx, result.Merged); err != nil {
		return nil, err
	}
	if err := dedupe.Persist(ctx, a.passages, result); err != nil {
		return nil, err
	}
	defer a.invalidate()

	file, err := termindex.ReadFile(a.config.Paths.TermIndex)
	switch {
	case errors.Is(err, termindex.ErrIndexMissing):
		a.logger.Warn("no term index to rewrite", "path", a.config.Paths.TermIndex)
	case err != nil:
		return nil, err
	default:
		file.TermToChunks = dedupe.ApplyRewrite(file.TermToChunks, result.Rewrite)
		if err := termindex.WriteFile(a.config.Paths.TermIndex, file); err != nil {
			return nil, fmt.Errorf("writing term index: %w", err)
		}
	}

	if path := a.config.Paths.AnnotationLinks; path != "" {
		annotations, err := a.Annotations()
		if err != nil {
			return nil, err
		}
		links := annotations.Rewrite(result.Rewrite).Links()
		if len(links) > 0 {
			if err := termindex.WriteAnnotationLinks(path, links); err != nil {
				return nil, fmt.Errorf("writing annotation links: %w", err)
			}
		}
	}
	return result, nil
}

// embedMerged gives freshly merged passages unit vectors so they are
// searchable as soon as they are persisted.
func (a *Archive) embedMerged(ctx context.Context, merged []*core.Passage) error {
	if len(merged) == 0 {
		return nil
	}
	texts := make([]string, len(merged))
	for i, passage := range merged {
		texts[i] = passage.Text
	}
	embeddings, err := a.provider.Embedder().EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding merged passages: %w", err)
	}
	if len(embeddings) != len(merged) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(merged), len(embeddings))
	}
	for i, passage := range merged {
		passage.Vector = reembed.NormalizeVector(embeddings[i])
	}
	return nil
}

// Reembed re-embeds stored passages using the reembed section, resuming
// from a checkpoint when a previous run was interrupted.
func (a *Archive) Reembed(ctx context.Context, progress io.Writer) error {
	settings := a.config.Reembed
	reembedder, err := reembed.NewReembedder(a.passages, a.provider.Embedder(), &settings, progress,
		reembed.WithCheckpoints(a.checkpoints),
		reembed.WithLogger(a.logger))
	if err != nil {
		return err
	}
	return reembedder.Run(ctx)
}
