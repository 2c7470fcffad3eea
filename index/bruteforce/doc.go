// Package bruteforce provides a simple vector index that answers kNN queries
// by scanning all vectors. Magnitudes are precomputed on Build so cosine
// queries cost one dot product per candidate.
package bruteforce
