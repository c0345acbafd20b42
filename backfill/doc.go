// Package backfill computes embeddings for keyword variations and content posts
// that were stored without one.
//
// Records are paged by ID from the repository, embedded in batches on a worker
// pool, normalized and written back. Progress is checkpointed after every page
// so an interrupted run resumes where it stopped. Transient provider failures
// are retried with exponential backoff; a batch that still fails is counted and
// skipped, and is picked up again by the next run.
package backfill
