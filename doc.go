// Package archivist answers questions about a corpus of historical documents.
//
// An Archive opens the passage store and the term index named in the
// configuration and hands out the pieces of the pipeline: a Searcher for
// hybrid keyword and semantic retrieval, a generation Client that retries
// through rate limits and quota exhaustion, and an Orchestrator that
// narrates large result sets in slices and merges the partial accounts.
// Ask runs the whole pipeline for one question.
//
// Ingestion, deduplication of overlapping passages and re-embedding are
// exposed for the command line tool.
package archivist
