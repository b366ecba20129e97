package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// Commit implements store.EventStore. The whole commit is a single
// serializable transaction; a concurrent writer on the same aggregate
// surfaces as a conflict and nothing is persisted.
func (s *Store) Commit(ctx context.Context, aggregateID string, ev event.Event, expected hash.Hash) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Zero(), err
	}
	if err := store.ValidateCommit(aggregateID, ev); err != nil {
		return hash.Zero(), err
	}

	newVersion, err := ev.Hash()
	if err != nil {
		return hash.Zero(), err
	}
	payload, err := s.reg.Encode(ev.Body)
	if err != nil {
		return hash.Zero(), err
	}
	seq, err := s.seq.Next()
	if err != nil {
		return hash.Zero(), fmt.Errorf("commit: next sequence: %w", err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		current, exists, err := readRefTxn(txn, aggregateID)
		if err != nil {
			return err
		}
		if err := store.CheckExpected("store.commit", aggregateID, current, exists, expected); err != nil {
			return err
		}

		// Event ids are globally unique; the Get also puts the key in the
		// read set so two racers on one id cannot both commit.
		if _, err := txn.Get(idKey(ev.ID)); err == nil {
			return rcerrors.NewInvalidArgument("store.commit", "duplicate event id "+ev.ID)
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("commit: check event id: %w", err)
		}

		rec := storedRecord{
			Seq:            seq,
			ID:             ev.ID,
			AggregateID:    aggregateID,
			Timestamp:      ev.Timestamp,
			CurrentVersion: ev.CurrentVersion.String(),
			Type:           ev.Type(),
			Payload:        payload,
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("commit: marshal record: %w", err)
		}

		if err := txn.Set(eventKey(aggregateID, seq), raw); err != nil {
			return fmt.Errorf("commit: write event: %w", err)
		}
		if err := txn.Set(idKey(ev.ID), []byte(aggregateID)); err != nil {
			return fmt.Errorf("commit: write id marker: %w", err)
		}

		oldRef := hash.Zero()
		if exists {
			oldRef = current
		}
		return swapTxn(txn, aggregateID, newVersion, oldRef)
	})
	if err != nil {
		return hash.Zero(), mapTxnErr("store.commit", aggregateID, err)
	}
	return newVersion, nil
}
