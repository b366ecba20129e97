package badger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refchain/refchain/internal/codec"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
	"github.com/refchain/refchain/internal/storetest"
)

func openTestStore(t *testing.T, reg *codec.Registry) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), reg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, reg *codec.Registry) store.Store {
		return openTestStore(t, reg)
	})
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg := storetest.NewRegistry()

	s, err := Open(dir, reg)
	require.NoError(t, err)

	e1 := event.Event{
		ID:          "e1",
		AggregateID: "acct",
		Timestamp:   1000,
		Body:        codec.RawPayload{Type: "a", Data: []byte(`{"n":1}`)},
	}
	h1, err := s.Commit(ctx, "acct", e1, hash.Zero())
	require.NoError(t, err)

	e2 := event.Event{
		ID:             "e2",
		AggregateID:    "acct",
		Timestamp:      2000,
		CurrentVersion: h1,
		Body:           codec.RawPayload{Type: "a", Data: []byte(`{"n":2}`)},
	}
	h2, err := s.Commit(ctx, "acct", e2, h1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, reg)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Read(ctx, "acct")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h2, got)

	events, err := s.Events(ctx, event.Filter{AggregateID: "acct"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "e2", events[1].ID)
	assert.Equal(t, h1, events[1].CurrentVersion, "chain link survives reopen")
}

func TestCommitOrderSurvivesReopen(t *testing.T) {
	// Sequence leases skip numbers on restart; ordering of records
	// committed across a reopen must still hold.
	ctx := context.Background()
	dir := t.TempDir()
	reg := storetest.NewRegistry()

	s, err := Open(dir, reg)
	require.NoError(t, err)
	_, err = s.Commit(ctx, "x", event.Event{
		ID: "before", AggregateID: "x", Timestamp: 5000,
		Body: codec.RawPayload{Type: "a", Data: []byte(`{}`)},
	}, hash.Zero())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, reg)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Commit(ctx, "y", event.Event{
		ID: "after", AggregateID: "y", Timestamp: 5000,
		Body: codec.RawPayload{Type: "a", Data: []byte(`{}`)},
	}, hash.Zero())
	require.NoError(t, err)

	var ids []string
	for ev, err := range s.All(ctx) {
		require.NoError(t, err)
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"before", "after"}, ids)
}

func TestUnreadableRecordIsSkipped(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, storetest.NewRegistry())
	defer s.Close()

	e1 := event.Event{
		ID:          "e1",
		AggregateID: "acct",
		Timestamp:   1000,
		Body:        codec.RawPayload{Type: "a", Data: []byte(`{"n":1}`)},
	}
	h1, err := s.Commit(ctx, "acct", e1, hash.Zero())
	require.NoError(t, err)

	e2 := event.Event{
		ID:             "e2",
		AggregateID:    "acct",
		Timestamp:      2000,
		CurrentVersion: h1,
		Body:           codec.RawPayload{Type: "a", Data: []byte(`{"n":2}`)},
	}
	_, err = s.Commit(ctx, "acct", e2, h1)
	require.NoError(t, err)

	// Overwrite e1's stored value out of band with bytes that are not a
	// record at all.
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		prefix := eventKeyPrefix("acct")
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		var key []byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec storedRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			if rec.ID == "e1" {
				key = it.Item().KeyCopy(nil)
				break
			}
		}
		it.Close()
		require.NotNil(t, key)
		return txn.Set(key, []byte("{not a record"))
	})
	require.NoError(t, err)

	events, err := s.Events(ctx, event.Filter{AggregateID: "acct"})
	require.NoError(t, err, "one corrupt record must not fail the query")
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
}
