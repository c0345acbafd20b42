// Package ingestion provides pipeline orchestration for loading keyword
// variations and content posts.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Validating and adding records to storage
//   - Generating embeddings asynchronously for records that arrive without one
//
// Processing is performed concurrently using a worker pool.
// Errors during async processing are logged and counted but do not fail the
// ingestion operation; records left without a vector are picked up by the
// backfill job.
package ingestion
