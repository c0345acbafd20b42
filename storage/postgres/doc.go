// Package postgres implements the storage interfaces on PostgreSQL with the
// pgvector extension.
//
// Similarity runs inside server-side SQL functions (find_similar_keywords,
// find_similar_posts, match_by_embedding) that the readiness machine installs
// with CREATE OR REPLACE. Keyword variations are read joined to their main
// keyword for the tenant, and to their most relevant cluster assignment.
package postgres
