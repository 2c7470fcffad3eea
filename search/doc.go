// Package search is the entry point of screenplay retrieval.
//
// Engine.Execute runs one structured query through the pipeline
// build/execute, filter, rank, fuse, threshold and paginate. The relational
// query and the semantic lookups run concurrently and join before fusion.
// Only a failure of the primary relational query is returned as an error;
// bible, character, location and semantic branches degrade to empty results.
package search
