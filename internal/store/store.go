package store

import (
	"context"
	"iter"

	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
)

// RefStore maps an aggregate id to the hash of its most recently committed
// event. Refs advance only through Swap's compare-and-swap; absence means
// the aggregate has never had a successful commit.
type RefStore interface {
	// Swap atomically advances the ref for aggregateID from oldRef to
	// newRef. The zero hash stands for "no ref": a zero oldRef is a
	// create, which succeeds only if no ref exists; a non-zero oldRef is
	// an update, which succeeds only if the stored ref equals it exactly.
	// oldRef == newRef is an idempotent no-op. Under N concurrent swaps
	// racing on the same (aggregateID, oldRef), exactly one succeeds and
	// the rest fail with CONCURRENCY_CONFLICT.
	Swap(ctx context.Context, aggregateID string, newRef, oldRef hash.Hash) error

	// Read returns the current ref, or (Zero, false) when none exists.
	// An empty aggregateID is not an error for Read, only for Swap.
	Read(ctx context.Context, aggregateID string) (hash.Hash, bool, error)
}

// EventStore is the append/query contract over the event log. Contention
// between writers to the same aggregate is detected at commit time, never
// prevented with locks held across the operation; writers to different
// aggregates never block each other.
type EventStore interface {
	// Commit verifies expected against the aggregate's current ref,
	// persists the event, and atomically advances the ref to the event's
	// content hash, returning that hash. A lost race fails with
	// CONCURRENCY_CONFLICT and leaves no trace of the event. For a brand
	// new aggregate expected must be the zero hash.
	Commit(ctx context.Context, aggregateID string, ev event.Event, expected hash.Hash) (hash.Hash, error)

	// Events returns the aggregate's events matching the filter, ordered
	// by ascending timestamp with ties broken by commit order. Stored
	// records that fail to decode are skipped with a logged diagnostic.
	Events(ctx context.Context, f event.Filter) ([]event.Event, error)

	// All lazily streams every committed event across all aggregates in
	// ascending timestamp order (ties by commit order). The sequence is
	// one-shot; a fresh call re-reads. Undecodable records are skipped as
	// in Events; iteration-level failures are yielded as the error of the
	// final element.
	All(ctx context.Context) iter.Seq2[event.Event, error]
}

// Store is the full contract every backend implements.
type Store interface {
	EventStore
	RefStore

	// Close releases backend resources. The in-memory backend's Close is
	// a no-op.
	Close() error
}
