package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/archivist/ai"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
	"github.com/poiesic/archivist/termindex"
)

// DefaultMinSimilarity is the similarity floor applied to semantic matches.
const DefaultMinSimilarity float32 = 0.60

// Searcher provides hybrid keyword and semantic retrieval over stored passages.
type Searcher struct {
	repository       storage.PassageRepository
	index            *termindex.Index
	annotations      *termindex.Annotations
	embedder         ai.Embedder
	minSimilarity    float32
	associationLimit int
	logger           *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithAnnotations attaches annotation links. Without them results carry no annotations.
func WithAnnotations(annotations *termindex.Annotations) Option {
	return func(s *Searcher) error {
		s.annotations = annotations
		return nil
	}
}

// WithMinSimilarity sets the semantic similarity floor.
// Default is DefaultMinSimilarity.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		if min < -1 || min > 1 {
			return fmt.Errorf("min similarity must be in [-1, 1], got %v", min)
		}
		s.minSimilarity = min
		return nil
	}
}

// WithAssociationLimit sets how many associations are used per term.
// Default is termindex.DefaultAssociationLimit.
func WithAssociationLimit(n int) Option {
	return func(s *Searcher) error {
		if n < 0 {
			return fmt.Errorf("association limit must not be negative, got %d", n)
		}
		s.associationLimit = n
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	repository storage.PassageRepository,
	index *termindex.Index,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if repository == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if index == nil {
		return nil, ErrTermIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		repository:       repository,
		index:            index,
		embedder:         provider.Embedder(),
		minSimilarity:    DefaultMinSimilarity,
		associationLimit: termindex.DefaultAssociationLimit,
		logger:           slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Retrieve runs keyword and semantic lookup for query and returns the merged,
// deduplicated, scored passages. keywordLimit caps the ids taken from each
// expanded term; semanticLimit caps the semantic matches. A limit <= 0
// disables that lookup.
func (s *Searcher) Retrieve(ctx context.Context, query string, keywordLimit, semanticLimit int) (*core.RetrievalResult, error) {
	return s.RetrieveWithMonitor(ctx, query, keywordLimit, semanticLimit, nil)
}

// RetrieveWithMonitor is Retrieve with a monitor receiving callbacks at each stage.
func (s *Searcher) RetrieveWithMonitor(ctx context.Context, query string, keywordLimit, semanticLimit int, monitor SearchMonitor) (*core.RetrievalResult, error) {
	return s.retrieve(ctx, query, keywordLimit, semanticLimit, monitor)
}

// RetrieveKeywordOnly skips semantic lookup entirely. Callers use it when they
// have decided to proceed after ErrRetrievalUnavailable.
func (s *Searcher) RetrieveKeywordOnly(ctx context.Context, query string, keywordLimit int) (*core.RetrievalResult, error) {
	return s.retrieve(ctx, query, keywordLimit, 0, nil)
}

// candidate tracks how a passage was found.
type candidate struct {
	passage    *core.Passage
	keyword    bool
	semantic   bool
	similarity float32
}

func (s *Searcher) retrieve(ctx context.Context, query string, keywordLimit, semanticLimit int, monitor SearchMonitor) (*core.RetrievalResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	// 1. Expand query terms through aliases and associations
	terms := s.index.QueryTerms(query)
	expanded := s.index.Expand(terms, s.associationLimit)
	monitor.AfterExpansion(terms, expanded)

	// 2. Keyword lookup, capped per term before the union
	keywordSet := make(map[string]bool)
	var orderedIDs []string
	if keywordLimit > 0 {
		for _, term := range expanded {
			ids := s.index.Lookup(term)
			if len(ids) > keywordLimit {
				ids = ids[:keywordLimit]
			}
			monitor.AfterKeywordLookup(term, ids)
			for _, id := range ids {
				if !keywordSet[id] {
					keywordSet[id] = true
					orderedIDs = append(orderedIDs, id)
				}
			}
		}
	}

	// 3. Semantic lookup on the raw query
	semanticScores := make(map[string]float32)
	if semanticLimit > 0 {
		embedding, err := s.embedder.EmbedText(ctx, query)
		if err != nil {
			s.logger.Error("error generating embedding for query", "query", query, "err", err)
			return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrievalUnavailable, err)
		}

		matches, err := s.repository.FindSimilar(ctx, embedding, s.minSimilarity, semanticLimit)
		if err != nil {
			s.logger.Error("error querying for similar passages", "err", err)
			return nil, fmt.Errorf("%w: semantic search: %w", ErrRetrievalUnavailable, err)
		}

		semanticIDs := make([]string, 0, len(matches))
		for _, match := range matches {
			id := match.Passage.ID
			semanticScores[id] = match.Score
			semanticIDs = append(semanticIDs, id)
			if !keywordSet[id] {
				orderedIDs = append(orderedIDs, id)
			}
		}
		monitor.AfterSemanticSearch(semanticIDs)
	}

	result := &core.RetrievalResult{
		Query:         query,
		ExpandedTerms: expanded,
		Passages:      []*core.ScoredPassage{},
	}

	// 4. Merge and fetch in one batch
	orderedIDs = dedupeIDs(orderedIDs)
	if len(orderedIDs) == 0 {
		monitor.Finish(result)
		return result, nil
	}

	passages, err := s.repository.GetPassages(ctx, orderedIDs...)
	if err != nil {
		s.logger.Error("error retrieving passages", "passageCount", len(orderedIDs), "err", err)
		return nil, fmt.Errorf("%w: fetching passages: %w", ErrRetrievalUnavailable, err)
	}
	monitor.AfterPassageFetch(passages)

	// Tombstoned ids resolve to their survivor, so several requested ids can
	// collapse into one passage.
	candidates := make(map[string]*candidate, len(passages))
	order := make([]string, 0, len(passages))
	for i, passage := range passages {
		if passage == nil {
			s.logger.Debug("passage not found in store", "id", orderedIDs[i])
			continue
		}
		requested := orderedIDs[i]
		c, ok := candidates[passage.ID]
		if !ok {
			c = &candidate{passage: passage}
			candidates[passage.ID] = c
			order = append(order, passage.ID)
		}
		c.keyword = c.keyword || keywordSet[requested]
		if score, ok := semanticScores[requested]; ok {
			if !c.semantic || score > c.similarity {
				c.similarity = score
			}
			c.semantic = true
		}
	}

	// 5. Score
	for _, id := range order {
		c := candidates[id]

		var score float32
		switch {
		case c.keyword && c.semantic:
			// In both: boost by 1.5x, weighted by similarity score
			score = 1.5 * c.similarity
			monitor.KeywordAndSemanticHit(c.passage)
		case c.keyword:
			score = 1.2
			monitor.KeywordHit(c.passage)
		default:
			score = c.similarity
			monitor.SemanticHit(c.passage)
		}

		// Apply verbatim match boost
		if termindex.ContainsAllWords(c.passage.Text, query) {
			score += 0.3
		}

		result.Passages = append(result.Passages, &core.ScoredPassage{
			Passage: c.passage,
			Score:   score,
		})
	}

	slices.SortFunc(result.Passages, compareScored)

	// 6. Annotations linked to the returned passages
	result.Annotations = s.annotations.Resolve(result.IDs())
	result.AnnotationCount = len(result.Annotations)

	monitor.Finish(result)
	return result, nil
}

// compareScored orders by score descending, then document, position, and id.
func compareScored(a, b *core.ScoredPassage) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Passage.SourceDocument, b.Passage.SourceDocument); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Passage.Position, b.Passage.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.Passage.ID, b.Passage.ID)
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := ids[:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
