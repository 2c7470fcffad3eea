// Package engine opens SQLite connections through the modernc.org/sqlite
// driver and registers the vec_cosine scalar function used to rank stored
// embeddings against one another. Every connection opened through Open sees
// the function.
package engine
