// Package storetest provides the conformance suite every store backend
// must pass. Backends hand Run a factory; the suite exercises the full
// RefStore and EventStore contracts, including randomized multi-writer
// races.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refchain/refchain/internal/codec"
	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// Factory builds a fresh, empty store wired to the suite's registry.
type Factory func(t *testing.T, reg *codec.Registry) store.Store

// badType is registered with a decoder that always fails, standing in for
// a corrupt stored record.
const badType = "test.bad"

// NewRegistry builds the payload registry the suite commits with.
func NewRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	for _, typ := range []string{"a", "b", "test.note"} {
		reg.Register(typ, codec.RawDecoder(typ))
	}
	reg.Register(badType, func(data []byte) (event.Payload, error) {
		return nil, errors.New("record is corrupt")
	})
	return reg
}

// Run executes the full conformance suite against the backend.
func Run(t *testing.T, factory Factory) {
	t.Run("RefSwap", func(t *testing.T) { runRefSwap(t, factory) })
	t.Run("Commit", func(t *testing.T) { runCommit(t, factory) })
	t.Run("Query", func(t *testing.T) { runQuery(t, factory) })
	t.Run("Concurrency", func(t *testing.T) { runConcurrency(t, factory) })
}

func newStore(t *testing.T, factory Factory) store.Store {
	t.Helper()
	s := factory(t, NewRegistry())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testEvent builds a committable event with a raw JSON body derived from
// the id, so distinct events always hash differently.
func testEvent(id, aggregateID, typ string, ts int64, parent hash.Hash) event.Event {
	return event.Event{
		ID:             id,
		AggregateID:    aggregateID,
		Timestamp:      ts,
		CurrentVersion: parent,
		Body:           codec.RawPayload{Type: typ, Data: json.RawMessage(`{"v":"` + id + `"}`)},
	}
}

func someHash(seed string) hash.Hash {
	return hash.Sum("refchain/test/v1", []byte(seed))
}

func runRefSwap(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("create then read", func(t *testing.T) {
		s := newStore(t, factory)
		h := someHash("h1")

		require.NoError(t, s.Swap(ctx, "agg", h, hash.Zero()))

		got, ok, err := s.Read(ctx, "agg")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, h, got)
	})

	t.Run("second create conflicts", func(t *testing.T) {
		s := newStore(t, factory)
		require.NoError(t, s.Swap(ctx, "agg", someHash("h1"), hash.Zero()))

		err := s.Swap(ctx, "agg", someHash("h2"), hash.Zero())
		require.Error(t, err)
		assert.True(t, rcerrors.IsConflict(err))
	})

	t.Run("update succeeds when old matches", func(t *testing.T) {
		s := newStore(t, factory)
		h1, h2 := someHash("h1"), someHash("h2")
		require.NoError(t, s.Swap(ctx, "agg", h1, hash.Zero()))

		require.NoError(t, s.Swap(ctx, "agg", h2, h1))

		got, ok, err := s.Read(ctx, "agg")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, h2, got)
	})

	t.Run("stale update conflicts and leaves ref unchanged", func(t *testing.T) {
		s := newStore(t, factory)
		h1 := someHash("h1")
		require.NoError(t, s.Swap(ctx, "agg", h1, hash.Zero()))

		err := s.Swap(ctx, "agg", someHash("h3"), someHash("stale"))
		require.Error(t, err)
		assert.True(t, rcerrors.IsConflict(err))

		got, ok, err := s.Read(ctx, "agg")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, h1, got)
	})

	t.Run("update of missing ref conflicts", func(t *testing.T) {
		s := newStore(t, factory)

		err := s.Swap(ctx, "ghost", someHash("h2"), someHash("h1"))
		require.Error(t, err)
		assert.True(t, rcerrors.IsConflict(err))
	})

	t.Run("no-op when old equals new", func(t *testing.T) {
		s := newStore(t, factory)
		h := someHash("h1")

		require.NoError(t, s.Swap(ctx, "agg", h, h), "no-change swap succeeds even without a ref")

		_, ok, err := s.Read(ctx, "agg")
		require.NoError(t, err)
		assert.False(t, ok, "no-op must not create a ref")
	})

	t.Run("empty aggregate id rejected", func(t *testing.T) {
		s := newStore(t, factory)

		err := s.Swap(ctx, "", someHash("h1"), hash.Zero())
		require.Error(t, err)
		assert.True(t, rcerrors.IsInvalidArgument(err))
	})

	t.Run("zero new ref rejected", func(t *testing.T) {
		s := newStore(t, factory)
		h := someHash("h1")
		require.NoError(t, s.Swap(ctx, "agg", h, hash.Zero()))

		err := s.Swap(ctx, "agg", hash.Zero(), h)
		require.Error(t, err)
		assert.True(t, rcerrors.IsInvalidArgument(err))
	})

	t.Run("read of unknown or empty id", func(t *testing.T) {
		s := newStore(t, factory)

		for _, id := range []string{"nobody", ""} {
			got, ok, err := s.Read(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.True(t, got.IsZero())
		}
	})
}

func runCommit(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("chain of two then stale third", func(t *testing.T) {
		s := newStore(t, factory)

		e1 := testEvent("e1", "acct", "a", 1000, hash.Zero())
		h1, err := s.Commit(ctx, "acct", e1, hash.Zero())
		require.NoError(t, err)

		want1, err := e1.Hash()
		require.NoError(t, err)
		assert.Equal(t, want1, h1, "commit returns the event's content hash")

		e2 := testEvent("e2", "acct", "a", 2000, h1)
		h2, err := s.Commit(ctx, "acct", e2, h1)
		require.NoError(t, err)

		got, ok, err := s.Read(ctx, "acct")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, h2, got, "ref tracks the last committed event")

		events, err := s.Events(ctx, event.Filter{AggregateID: "acct"})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e1", events[0].ID)
		assert.Equal(t, "e2", events[1].ID)

		// Stale commit: e3 still expects h1.
		e3 := testEvent("e3", "acct", "a", 3000, h1)
		_, err = s.Commit(ctx, "acct", e3, h1)
		require.Error(t, err)
		assert.True(t, rcerrors.IsConflict(err))

		events, err = s.Events(ctx, event.Filter{AggregateID: "acct"})
		require.NoError(t, err)
		require.Len(t, events, 2, "failed commit must leave the log unchanged")
	})

	t.Run("new aggregate with non-zero expected", func(t *testing.T) {
		s := newStore(t, factory)

		e := testEvent("e1", "fresh", "a", 1000, hash.Zero())
		_, err := s.Commit(ctx, "fresh", e, someHash("arbitrary"))
		require.Error(t, err)
		assert.True(t, rcerrors.IsConflict(err))

		events, err := s.Events(ctx, event.Filter{AggregateID: "fresh"})
		require.NoError(t, err)
		assert.Empty(t, events, "no event may be persisted on a refused commit")
	})

	t.Run("aggregate id mismatch rejected", func(t *testing.T) {
		s := newStore(t, factory)

		e := testEvent("e1", "other", "a", 1000, hash.Zero())
		_, err := s.Commit(ctx, "acct", e, hash.Zero())
		require.Error(t, err)
		assert.True(t, rcerrors.IsInvalidArgument(err))
	})

	t.Run("empty aggregate id rejected", func(t *testing.T) {
		s := newStore(t, factory)

		e := testEvent("e1", "", "a", 1000, hash.Zero())
		_, err := s.Commit(ctx, "", e, hash.Zero())
		require.Error(t, err)
		assert.True(t, rcerrors.IsInvalidArgument(err))
	})

	t.Run("duplicate event id rejected", func(t *testing.T) {
		s := newStore(t, factory)

		e1 := testEvent("same-id", "x", "a", 1000, hash.Zero())
		_, err := s.Commit(ctx, "x", e1, hash.Zero())
		require.NoError(t, err)

		e2 := testEvent("same-id", "y", "a", 1000, hash.Zero())
		_, err = s.Commit(ctx, "y", e2, hash.Zero())
		require.Error(t, err)
		assert.True(t, rcerrors.IsInvalidArgument(err))
	})

	t.Run("cancelled context leaves no partial state", func(t *testing.T) {
		s := newStore(t, factory)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		e := testEvent("e1", "acct", "a", 1000, hash.Zero())
		_, err := s.Commit(cancelled, "acct", e, hash.Zero())
		require.Error(t, err)

		events, err := s.Events(ctx, event.Filter{AggregateID: "acct"})
		require.NoError(t, err)
		assert.Empty(t, events)
		_, ok, err := s.Read(ctx, "acct")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func runQuery(t *testing.T, factory Factory) {
	ctx := context.Background()

	// commitChain appends events to one aggregate, tracking the version.
	commitChain := func(t *testing.T, s store.Store, aggregateID string, evs ...event.Event) []hash.Hash {
		t.Helper()
		versions := make([]hash.Hash, 0, len(evs))
		parent := hash.Zero()
		for i := range evs {
			evs[i].CurrentVersion = parent
			h, err := s.Commit(ctx, aggregateID, evs[i], parent)
			require.NoError(t, err)
			parent = h
			versions = append(versions, h)
		}
		return versions
	}

	t.Run("filter by type", func(t *testing.T) {
		s := newStore(t, factory)
		commitChain(t, s, "agg",
			testEvent("e1", "agg", "a", 1000, hash.Zero()),
			testEvent("e2", "agg", "b", 2000, hash.Zero()),
			testEvent("e3", "agg", "a", 3000, hash.Zero()),
		)

		events, err := s.Events(ctx, event.Filter{AggregateID: "agg", Type: "a"})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e1", events[0].ID)
		assert.Equal(t, "e3", events[1].ID)
		for _, ev := range events {
			assert.Equal(t, "a", ev.Type())
		}
	})

	t.Run("filter by inclusive time range", func(t *testing.T) {
		s := newStore(t, factory)
		commitChain(t, s, "agg",
			testEvent("e1", "agg", "a", 1000, hash.Zero()),
			testEvent("e2", "agg", "a", 1500, hash.Zero()),
			testEvent("e3", "agg", "a", 2000, hash.Zero()),
			testEvent("e4", "agg", "a", 2500, hash.Zero()),
			testEvent("e5", "agg", "a", 3000, hash.Zero()),
		)

		start, end := int64(1500), int64(2500)
		events, err := s.Events(ctx, event.Filter{AggregateID: "agg", Start: &start, End: &end})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "e2", events[0].ID)
		assert.Equal(t, "e3", events[1].ID)
		assert.Equal(t, "e4", events[2].ID)
	})

	t.Run("filter requires aggregate id", func(t *testing.T) {
		s := newStore(t, factory)

		_, err := s.Events(ctx, event.Filter{})
		require.Error(t, err)
		assert.True(t, rcerrors.IsInvalidArgument(err))
	})

	t.Run("all events globally ordered by timestamp", func(t *testing.T) {
		s := newStore(t, factory)
		// Later wall-clock events committed first, across two aggregates.
		commitChain(t, s, "x",
			testEvent("x1", "x", "a", 3000, hash.Zero()),
		)
		commitChain(t, s, "y",
			testEvent("y1", "y", "a", 1000, hash.Zero()),
			testEvent("y2", "y", "a", 4000, hash.Zero()),
		)
		commitChain(t, s, "z",
			testEvent("z1", "z", "a", 2000, hash.Zero()),
		)

		var ids []string
		for ev, err := range s.All(ctx) {
			require.NoError(t, err)
			ids = append(ids, ev.ID)
		}
		assert.Equal(t, []string{"y1", "z1", "x1", "y2"}, ids)
	})

	t.Run("timestamp ties broken by commit order", func(t *testing.T) {
		s := newStore(t, factory)
		commitChain(t, s, "x", testEvent("first", "x", "a", 5000, hash.Zero()))
		commitChain(t, s, "y", testEvent("second", "y", "a", 5000, hash.Zero()))

		var ids []string
		for ev, err := range s.All(ctx) {
			require.NoError(t, err)
			ids = append(ids, ev.ID)
		}
		assert.Equal(t, []string{"first", "second"}, ids)
	})

	t.Run("all is one-shot and re-readable", func(t *testing.T) {
		s := newStore(t, factory)
		commitChain(t, s, "x", testEvent("x1", "x", "a", 1000, hash.Zero()))

		count := func() int {
			n := 0
			for _, err := range s.All(ctx) {
				require.NoError(t, err)
				n++
			}
			return n
		}
		assert.Equal(t, 1, count())
		assert.Equal(t, 1, count(), "a fresh call re-reads the log")
	})

	t.Run("undecodable record skipped, not fatal", func(t *testing.T) {
		s := newStore(t, factory)
		commitChain(t, s, "agg",
			testEvent("good-1", "agg", "a", 1000, hash.Zero()),
			testEvent("bad-1", "agg", badType, 2000, hash.Zero()),
			testEvent("good-2", "agg", "a", 3000, hash.Zero()),
		)

		events, err := s.Events(ctx, event.Filter{AggregateID: "agg"})
		require.NoError(t, err, "a query must never fail wholesale for one bad record")
		require.Len(t, events, 2)
		assert.Equal(t, "good-1", events[0].ID)
		assert.Equal(t, "good-2", events[1].ID)

		var ids []string
		for ev, err := range s.All(ctx) {
			require.NoError(t, err)
			ids = append(ids, ev.ID)
		}
		assert.Equal(t, []string{"good-1", "good-2"}, ids)
	})
}

func runConcurrency(t *testing.T, factory Factory) {
	ctx := context.Background()
	const racers = 10

	// race runs fn concurrently and returns (successes, conflicts).
	race := func(t *testing.T, n int, fn func(i int) error) (int, int) {
		t.Helper()
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = fn(i)
			}(i)
		}
		wg.Wait()

		successes, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case rcerrors.IsConflict(err):
				conflicts++
			default:
				t.Fatalf("unexpected error class: %v", err)
			}
		}
		return successes, conflicts
	}

	t.Run("create race has exactly one winner", func(t *testing.T) {
		s := newStore(t, factory)

		successes, conflicts := race(t, racers, func(i int) error {
			return s.Swap(ctx, "agg", someHash(fmt.Sprintf("h%d", i)), hash.Zero())
		})
		assert.Equal(t, 1, successes)
		assert.Equal(t, racers-1, conflicts)

		_, ok, err := s.Read(ctx, "agg")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("update race has exactly one winner", func(t *testing.T) {
		s := newStore(t, factory)
		h0 := someHash("h0")
		require.NoError(t, s.Swap(ctx, "agg", h0, hash.Zero()))

		successes, conflicts := race(t, racers, func(i int) error {
			return s.Swap(ctx, "agg", someHash(fmt.Sprintf("h%d", i+1)), h0)
		})
		assert.Equal(t, 1, successes)
		assert.Equal(t, racers-1, conflicts)
	})

	t.Run("commit race leaves only the winner's event", func(t *testing.T) {
		s := newStore(t, factory)

		e1 := testEvent("seed", "acct", "a", 1000, hash.Zero())
		h1, err := s.Commit(ctx, "acct", e1, hash.Zero())
		require.NoError(t, err)

		successes, conflicts := race(t, 2, func(i int) error {
			ev := testEvent(fmt.Sprintf("racer-%d", i), "acct", "a", 2000, h1)
			_, err := s.Commit(ctx, "acct", ev, h1)
			return err
		})
		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, conflicts)

		events, err := s.Events(ctx, event.Filter{AggregateID: "acct"})
		require.NoError(t, err)
		require.Len(t, events, 2, "the loser must leave no orphan event")

		got, ok, err := s.Read(ctx, "acct")
		require.NoError(t, err)
		require.True(t, ok)
		winner, err := events[1].Hash()
		require.NoError(t, err)
		assert.Equal(t, winner, got)
	})

	t.Run("distinct aggregates never conflict", func(t *testing.T) {
		s := newStore(t, factory)

		successes, conflicts := race(t, racers, func(i int) error {
			agg := fmt.Sprintf("agg-%d", i)
			ev := testEvent(fmt.Sprintf("e-%d", i), agg, "a", int64(1000+i), hash.Zero())
			_, err := s.Commit(ctx, agg, ev, hash.Zero())
			return err
		})
		assert.Equal(t, racers, successes)
		assert.Zero(t, conflicts)
	})
}
