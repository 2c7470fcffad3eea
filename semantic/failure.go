package semantic

import (
	"context"
	"errors"
)

// Failure stages.
const (
	StageEmbedding = "embedding"
	StageSearch    = "vector_search"
	StageHydration = "hydration"
	StageCanceled  = "canceled"
	StageUnknown   = "unknown"
)

// Failure records the retrieval stage an error came from.
type Failure struct {
	Stage string
	Err   error
}

func (f *Failure) Error() string { return "semantic " + f.Stage + ": " + f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// StageOf returns the stage of the Failure in err's chain.
func StageOf(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StageCanceled
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Stage
	}
	return StageUnknown
}
