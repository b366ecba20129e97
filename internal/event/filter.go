package event

import rcerrors "github.com/refchain/refchain/internal/errors"

// Filter describes an event query: a required aggregate id, an optional
// type discriminator, and optional inclusive timestamp bounds. Filters are
// query descriptors only; they are never persisted.
type Filter struct {
	AggregateID string
	Type        string // "" matches every type
	Start       *int64 // inclusive lower timestamp bound, nil for none
	End         *int64 // inclusive upper timestamp bound, nil for none
}

// Validate checks that the filter names an aggregate.
func (f Filter) Validate() error {
	if f.AggregateID == "" {
		return rcerrors.NewInvalidArgument("filter.validate", "aggregate id must not be empty")
	}
	return nil
}

// Match reports whether an event with the given type and timestamp passes
// the filter's optional predicates. The aggregate id is matched by the
// store, not here.
func (f Filter) Match(eventType string, timestamp int64) bool {
	if f.Type != "" && eventType != f.Type {
		return false
	}
	if f.Start != nil && timestamp < *f.Start {
		return false
	}
	if f.End != nil && timestamp > *f.End {
		return false
	}
	return true
}
