package badger

import (
	"context"
	"errors"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// Swap implements store.RefStore.
func (s *Store) Swap(ctx context.Context, aggregateID string, newRef, oldRef hash.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateSwap(aggregateID, newRef, oldRef); err != nil {
		return err
	}
	if oldRef == newRef {
		return nil // idempotent no-change
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return swapTxn(txn, aggregateID, newRef, oldRef)
	})
	return mapTxnErr("refs.swap", aggregateID, err)
}

// Read implements store.RefStore.
func (s *Store) Read(ctx context.Context, aggregateID string) (hash.Hash, bool, error) {
	if err := ctx.Err(); err != nil {
		return hash.Zero(), false, err
	}
	if aggregateID == "" {
		return hash.Zero(), false, nil
	}

	var (
		h      hash.Hash
		exists bool
	)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		h, exists, err = readRefTxn(txn, aggregateID)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return hash.Zero(), false, err
	}
	return h, exists, nil
}
