package search

import (
	"log/slog"

	"github.com/poiesic/archivist/core"
)

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterExpansion(terms []string, expanded []string)
	AfterKeywordLookup(term string, ids []string)
	AfterSemanticSearch(ids []string)
	AfterPassageFetch(passages []*core.Passage)
	KeywordAndSemanticHit(passage *core.Passage)
	KeywordHit(passage *core.Passage)
	SemanticHit(passage *core.Passage)
	Finish(result *core.RetrievalResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterExpansion(_ []string, _ []string)   {}
func (n *noopMonitor) AfterKeywordLookup(_ string, _ []string) {}
func (n *noopMonitor) AfterSemanticSearch(_ []string)          {}
func (n *noopMonitor) AfterPassageFetch(_ []*core.Passage)     {}
func (n *noopMonitor) KeywordAndSemanticHit(_ *core.Passage)   {}
func (n *noopMonitor) KeywordHit(_ *core.Passage)              {}
func (n *noopMonitor) SemanticHit(_ *core.Passage)             {}
func (n *noopMonitor) Finish(_ *core.RetrievalResult)          {}

// LoggingMonitor writes every retrieval stage to a logger at debug level.
type LoggingMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LoggingMonitor)(nil)

// NewLoggingMonitor creates a monitor that traces retrieval to logger.
func NewLoggingMonitor(logger *slog.Logger) *LoggingMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMonitor{logger: logger.With("component", "search-trace")}
}

func (m *LoggingMonitor) Start(query string) {
	m.logger.Debug("retrieval started", "query", query)
}

func (m *LoggingMonitor) AfterExpansion(terms []string, expanded []string) {
	m.logger.Debug("query expanded", "terms", terms, "expanded", expanded)
}

func (m *LoggingMonitor) AfterKeywordLookup(term string, ids []string) {
	m.logger.Debug("keyword lookup", "term", term, "hits", len(ids))
}

func (m *LoggingMonitor) AfterSemanticSearch(ids []string) {
	m.logger.Debug("semantic search", "hits", len(ids))
}

func (m *LoggingMonitor) AfterPassageFetch(passages []*core.Passage) {
	m.logger.Debug("passages fetched", "count", len(passages))
}

func (m *LoggingMonitor) KeywordAndSemanticHit(passage *core.Passage) {
	m.logger.Debug("keyword and semantic hit", "passage", passage.ID, "document", passage.SourceDocument)
}

func (m *LoggingMonitor) KeywordHit(passage *core.Passage) {
	m.logger.Debug("keyword hit", "passage", passage.ID, "document", passage.SourceDocument)
}

func (m *LoggingMonitor) SemanticHit(passage *core.Passage) {
	m.logger.Debug("semantic hit", "passage", passage.ID, "document", passage.SourceDocument)
}

func (m *LoggingMonitor) Finish(result *core.RetrievalResult) {
	m.logger.Debug("retrieval finished", "passages", len(result.Passages), "annotations", result.AnnotationCount)
}
