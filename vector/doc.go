// Package vector stores entity embeddings in SQLite and answers
// nearest-neighbour queries over them. It includes:
//   - Record/Hit model and the Store interface
//   - SQLiteStore: one embeddings table per entity type plus a shared
//     embedding_metadata table
//   - Embedding encoding (raw float32 BLOB) and the legacy length-prefixed
//     format kept for migration
//   - Distance functions for the cosine, L2 and L1 metrics
package vector
