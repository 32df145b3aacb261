// Package ingestion turns source documents into stored passages.
//
// Documents are split into overlapping word windows by Chunk. The Pipeline
// stores the resulting passages, records their terms in a termindex.Builder
// and embeds them asynchronously on a worker pool. Overlapping windows are
// later collapsed by the dedupe package.
//
// Errors during async embedding are logged and reported by Wait; they do not
// fail the Ingest call that queued them.
package ingestion
