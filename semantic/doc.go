// Package semantic merges vector-similarity matches into a relational result
// set.
//
// The Adapter embeds the query text, looks up nearest scenes and bible chunks
// through a VectorSearcher and hydrates them through a Hydrator. Any failure
// on that path degrades to the unchanged input: the failure is logged,
// counted and reported in the returned Outcome, never as an error.
package semantic
