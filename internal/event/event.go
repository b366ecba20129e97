package event

import (
	"encoding/json"
	"fmt"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/hash"
)

// Payload is a typed domain payload carried by an Event. Implementations
// must round-trip deterministically through encoding/json (plain structs
// and json.RawMessage both do), because the serialized form is part of the
// event's content hash.
type Payload interface {
	// EventType returns the discriminator used for registry decode and
	// query filtering.
	EventType() string
}

// Event is an immutable fact. Once committed it is never mutated or
// deleted; its identity is the content hash returned by Hash.
type Event struct {
	// ID uniquely identifies the event across all aggregates.
	ID string

	// AggregateID groups events into one per-aggregate chain.
	AggregateID string

	// Timestamp is a wall-clock instant in milliseconds. Not guaranteed
	// strictly increasing across concurrent writers; queries break ties
	// by commit order.
	Timestamp int64

	// CurrentVersion is the hash of the event this one logically follows,
	// or the zero hash for the first event of an aggregate.
	CurrentVersion hash.Hash

	// Body is the domain payload. Must be non-nil for a commit.
	Body Payload
}

// Type returns the event's discriminator, or "" when Body is unset.
func (e Event) Type() string {
	if e.Body == nil {
		return ""
	}
	return e.Body.EventType()
}

// Validate checks the fields a commit requires.
func (e Event) Validate() error {
	if e.ID == "" {
		return rcerrors.NewInvalidArgument("event.validate", "event id must not be empty")
	}
	if e.AggregateID == "" {
		return rcerrors.NewInvalidArgument("event.validate", "aggregate id must not be empty")
	}
	if e.Timestamp < 0 {
		return rcerrors.NewInvalidArgument("event.validate",
			fmt.Sprintf("timestamp must not be negative, got %d", e.Timestamp))
	}
	if e.Body == nil {
		return rcerrors.NewInvalidArgument("event.validate", "event body must not be nil")
	}
	if e.Body.EventType() == "" {
		return rcerrors.NewInvalidArgument("event.validate", "event type must not be empty")
	}
	return nil
}

// Hash computes the event's content-addressed identity: a domain-separated
// SHA-256 over the canonical encoding of every field, including the
// serialized body and the predecessor link. Two events with identical
// fields hash identically; altering any committed field breaks every later
// chain link.
func (e Event) Hash() (hash.Hash, error) {
	body, err := json.Marshal(e.Body)
	if err != nil {
		return hash.Zero(), fmt.Errorf("event hash: marshal body: %w", err)
	}
	canonical, err := MarshalCanonical(canonicalFields(e, body))
	if err != nil {
		return hash.Zero(), fmt.Errorf("event hash: %w", err)
	}
	return hash.Sum(hash.EventDomain, canonical), nil
}

// canonicalFields builds the stable, order-sensitive object that feeds the
// content hash. The serialized body is embedded as a string so arbitrary
// payload JSON never has to satisfy the canonical encoder's constraints.
func canonicalFields(e Event, body []byte) map[string]any {
	return map[string]any{
		"id":              e.ID,
		"aggregate_id":    e.AggregateID,
		"timestamp":       e.Timestamp,
		"current_version": e.CurrentVersion.String(),
		"type":            e.Type(),
		"body":            string(body),
	}
}
