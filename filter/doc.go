// Package filter implements the post-retrieval filters applied to scene
// results and the ordered chain that runs them.
package filter
