package memory

import (
	"context"
	"iter"
	"log/slog"

	"github.com/refchain/refchain/internal/codec"
	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// Store is the in-process backend: a ref map of independently locked cells
// plus a seq-stamped append-only log. Single process only; state is lost
// on exit.
type Store struct {
	refs   *refMap
	log    *memLog
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

// New creates an empty in-memory store using the given payload registry.
func New(reg *codec.Registry, opts ...Option) *Store {
	s := &Store{
		refs:   newRefMap(),
		log:    newMemLog(),
		reg:    reg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close implements store.Store. It is a no-op.
func (s *Store) Close() error { return nil }

// Swap implements store.RefStore.
func (s *Store) Swap(ctx context.Context, aggregateID string, newRef, oldRef hash.Hash) error {
	return s.refs.Swap(ctx, aggregateID, newRef, oldRef)
}

// Read implements store.RefStore.
func (s *Store) Read(ctx context.Context, aggregateID string) (hash.Hash, bool, error) {
	return s.refs.Read(ctx, aggregateID)
}

// Commit implements store.EventStore. The append happens before the ref
// swap; losing the swap removes the just-appended record so the log never
// retains an event whose ref update failed.
func (s *Store) Commit(ctx context.Context, aggregateID string, ev event.Event, expected hash.Hash) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Zero(), err
	}
	if err := store.ValidateCommit(aggregateID, ev); err != nil {
		return hash.Zero(), err
	}

	current, exists, err := s.refs.Read(ctx, aggregateID)
	if err != nil {
		return hash.Zero(), err
	}
	if err := store.CheckExpected("store.commit", aggregateID, current, exists, expected); err != nil {
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

	seq, ok := s.log.append(record{
		id:             ev.ID,
		aggregateID:    aggregateID,
		timestamp:      ev.Timestamp,
		currentVersion: ev.CurrentVersion,
		eventType:      ev.Type(),
		payload:        payload,
	})
	if !ok {
		return hash.Zero(), rcerrors.NewInvalidArgument("store.commit", "duplicate event id "+ev.ID)
	}

	oldRef := hash.Zero()
	if exists {
		oldRef = current
	}
	if err := s.refs.Swap(ctx, aggregateID, newVersion, oldRef); err != nil {
		// Lost the race: compensate before surfacing the conflict.
		s.log.remove(aggregateID, seq)
		return hash.Zero(), err
	}
	return newVersion, nil
}

// Events implements store.EventStore.
func (s *Store) Events(ctx context.Context, f event.Filter) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	events := []event.Event{}
	for _, rec := range s.log.snapshot(f.AggregateID) {
		if !f.Match(rec.eventType, rec.timestamp) {
			continue
		}
		ev, err := s.decode(rec)
		if err != nil {
			s.logger.Warn("skipping undecodable event record",
				"aggregate_id", rec.aggregateID, "event_id", rec.id, "type", rec.eventType, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// All implements store.EventStore.
func (s *Store) All(ctx context.Context) iter.Seq2[event.Event, error] {
	recs := s.log.all()
	return func(yield func(event.Event, error) bool) {
		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				yield(event.Event{}, err)
				return
			}
			ev, err := s.decode(rec)
			if err != nil {
				s.logger.Warn("skipping undecodable event record",
					"aggregate_id", rec.aggregateID, "event_id", rec.id, "type", rec.eventType, "error", err)
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (s *Store) decode(rec record) (event.Event, error) {
	body, err := s.reg.Decode(rec.eventType, rec.payload)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		ID:             rec.id,
		AggregateID:    rec.aggregateID,
		Timestamp:      rec.timestamp,
		CurrentVersion: rec.currentVersion,
		Body:           body,
	}, nil
}
