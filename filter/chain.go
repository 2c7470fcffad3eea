package filter

import "github.com/viant/scriptsearch/model"

// Chain applies filters in order.
type Chain struct {
	filters []Filter
}

// NewChain returns a chain of filters. DuplicateFilter instances are moved
// to the end, after every content-bearing filter.
func NewChain(filters ...Filter) *Chain {
	ordered := make([]Filter, 0, len(filters))
	var dedupe []Filter
	for _, f := range filters {
		if _, ok := f.(DuplicateFilter); ok {
			dedupe = append(dedupe, f)
			continue
		}
		ordered = append(ordered, f)
	}
	return &Chain{filters: append(ordered, dedupe...)}
}

// DefaultChain runs the character, location, time-of-day, season/episode
// and duplicate filters.
func DefaultChain() *Chain {
	return NewChain(
		CharacterFilter{},
		LocationFilter{},
		TimeOfDayFilter{},
		SeasonEpisodeFilter{},
		DuplicateFilter{},
	)
}

// Names lists the filters in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}

// Apply runs every filter in sequence and stops early once the set is empty.
func (c *Chain) Apply(results []model.Result, q model.Query) []model.Result {
	out := results
	for _, f := range c.filters {
		if len(out) == 0 {
			return out
		}
		out = f.Apply(out, q)
	}
	return out
}
