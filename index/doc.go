// Package index defines a minimal abstraction for vector indexes that can be
// built from entity embeddings and queried for the k nearest neighbours under
// a distance metric. Implementations in this module include a brute-force
// baseline.
package index
