// Package rank reorders scene results. Each Ranker returns a new, stably
// sorted slice with recomputed scores; the components behind a score are
// kept in Result.ScoreBreakdown.
package rank
