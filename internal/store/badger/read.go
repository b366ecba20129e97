package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
)

// Events implements store.EventStore.
func (s *Store) Events(ctx context.Context, f event.Filter) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	recs, err := s.scan(eventKeyPrefix(f.AggregateID))
	if err != nil {
		return nil, err
	}
	sortRecords(recs)

	events := []event.Event{}
	for _, rec := range recs {
		if !f.Match(rec.Type, rec.Timestamp) {
			continue
		}
		ev, err := s.decode(rec)
		if err != nil {
			continue // bad record already logged
		}
		events = append(events, ev)
	}
	return events, nil
}

// All implements store.EventStore. The scan runs when the sequence is
// consumed, not when All is called.
func (s *Store) All(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		recs, err := s.scan([]byte(eventPrefix))
		if err != nil {
			yield(event.Event{}, err)
			return
		}
		sortRecords(recs)

		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				yield(event.Event{}, err)
				return
			}
			ev, err := s.decode(rec)
			if err != nil {
				continue // bad record already logged
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// scan collects every stored record under the prefix in one snapshot.
func (s *Store) scan(prefix []byte) ([]storedRecord, error) {
	var recs []storedRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("scan events: %w", err)
			}
			var rec storedRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				s.logger.Warn("skipping unreadable event record",
					"key", string(it.Item().Key()), "error", err)
				continue
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func sortRecords(recs []storedRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp < recs[j].Timestamp
		}
		return recs[i].Seq < recs[j].Seq
	})
}

func (s *Store) decode(rec storedRecord) (event.Event, error) {
	version, err := hash.Parse(rec.CurrentVersion)
	if err != nil {
		s.logger.Warn("skipping undecodable event record",
			"aggregate_id", rec.AggregateID, "event_id", rec.ID, "type", rec.Type, "error", err)
		return event.Event{}, err
	}
	body, err := s.reg.Decode(rec.Type, rec.Payload)
	if err != nil {
		s.logger.Warn("skipping undecodable event record",
			"aggregate_id", rec.AggregateID, "event_id", rec.ID, "type", rec.Type, "error", err)
		return event.Event{}, err
	}
	return event.Event{
		ID:             rec.ID,
		AggregateID:    rec.AggregateID,
		Timestamp:      rec.Timestamp,
		CurrentVersion: version,
		Body:           body,
	}, nil
}
