package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// Commit implements store.EventStore. The event insert and the ref swap
// run in one transaction, so a lost race rolls back the insert and the
// log never retains an event whose ref update failed.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hash.Zero(), fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	current, exists, err := readRef(ctx, tx, aggregateID)
	if err != nil {
		return hash.Zero(), err
	}
	if err := store.CheckExpected("store.commit", aggregateID, current, exists, expected); err != nil {
		return hash.Zero(), err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, aggregate_id, timestamp, current_version, type, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		aggregateID,
		ev.Timestamp,
		ev.CurrentVersion.String(),
		ev.Type(),
		payload,
	)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return hash.Zero(), rcerrors.NewInvalidArgument("store.commit", "duplicate event id "+ev.ID)
		}
		return hash.Zero(), fmt.Errorf("commit: insert event: %w", err)
	}

	oldRef := hash.Zero()
	if exists {
		oldRef = current
	}
	if err := swapRef(ctx, tx, aggregateID, newVersion, oldRef); err != nil {
		return hash.Zero(), err
	}

	if err := tx.Commit(); err != nil {
		return hash.Zero(), fmt.Errorf("commit: %w", err)
	}
	return newVersion, nil
}
