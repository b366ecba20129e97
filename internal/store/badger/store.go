package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/refchain/refchain/internal/codec"
	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// seqBandwidth is how many commit sequence numbers a store leases from
// Badger at a time. Gaps on restart are fine; only ordering matters.
const seqBandwidth = 64

// Store provides durable refchain storage backed by BadgerDB.
type Store struct {
	db     *badgerdb.DB
	seq    *badgerdb.Sequence
	reg    *codec.Registry
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped-record diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open creates or opens a Badger database rooted at dir.
func Open(dir string, reg *codec.Registry, opts ...Option) (*Store, error) {
	options := badgerdb.DefaultOptions(dir)
	options.Logger = nil

	db, err := badgerdb.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open commit sequence: %w", err)
	}

	s := &Store{db: db, seq: seq, reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the commit sequence lease and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to release commit sequence: %w", err)
	}
	return s.db.Close()
}

// readRefTxn reads the current ref inside a transaction, registering the
// key in the transaction's read set so concurrent swaps conflict.
func readRefTxn(txn *badgerdb.Txn, aggregateID string) (hash.Hash, bool, error) {
	item, err := txn.Get(refKey(aggregateID))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return hash.Zero(), false, nil
	}
	if err != nil {
		return hash.Zero(), false, fmt.Errorf("read ref: %w", err)
	}

	raw, err := item.ValueCopy(nil)
	if err != nil {
		return hash.Zero(), false, fmt.Errorf("read ref: %w", err)
	}
	h, err := hash.Parse(string(raw))
	if err != nil {
		return hash.Zero(), false, fmt.Errorf("read ref: stored value is not a valid hash: %w", err)
	}
	return h, true, nil
}

// swapTxn performs the check-and-set inside an open transaction.
func swapTxn(txn *badgerdb.Txn, aggregateID string, newRef, oldRef hash.Hash) error {
	current, exists, err := readRefTxn(txn, aggregateID)
	if err != nil {
		return err
	}

	if oldRef.IsZero() {
		if exists {
			return rcerrors.NewConflict("refs.swap", aggregateID, "ref already exists")
		}
	} else if !exists || current != oldRef {
		return rcerrors.NewConflict("refs.swap", aggregateID, "stored ref does not match expected")
	}

	return txn.Set(refKey(aggregateID), []byte(newRef.String()))
}

// mapTxnErr converts Badger's optimistic-transaction failure into the
// store's conflict error; everything else passes through.
func mapTxnErr(op, aggregateID string, err error) error {
	if errors.Is(err, badgerdb.ErrConflict) {
		return rcerrors.NewConflict(op, aggregateID, "concurrent writer won the race")
	}
	return err
}

// storedRecord is the JSON value under an evt/ key.
type storedRecord struct {
	Seq            uint64          `json:"seq"`
	ID             string          `json:"id"`
	AggregateID    string          `json:"aggregate_id"`
	Timestamp      int64           `json:"timestamp"`
	CurrentVersion string          `json:"current_version"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
}
