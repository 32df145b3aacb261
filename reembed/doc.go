// Package reembed re-embeds stored passages, typically after the embedding
// model changes or after deduplication created merged passages without
// vectors.
//
// Passages are walked in document order and embedded in batches. Embedding
// calls are retried with exponential backoff and every vector is normalized
// to unit length, since similarity search scores by dot product. Progress
// can be checkpointed so an interrupted run resumes after the last finished
// batch.
package reembed
