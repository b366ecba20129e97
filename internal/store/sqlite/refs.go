package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the ref swap can run
// standalone or inside a commit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Swap implements store.RefStore.
func (s *Store) Swap(ctx context.Context, aggregateID string, newRef, oldRef hash.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return swapRef(ctx, s.db, aggregateID, newRef, oldRef)
}

// swapRef performs the check-and-set. Creation uses ON CONFLICT DO NOTHING
// and updates guard on the stored value; in both cases RowsAffected == 0
// means another writer got there first.
func swapRef(ctx context.Context, db dbtx, aggregateID string, newRef, oldRef hash.Hash) error {
	if err := store.ValidateSwap(aggregateID, newRef, oldRef); err != nil {
		return err
	}
	if oldRef == newRef {
		return nil // idempotent no-change
	}

	if oldRef.IsZero() {
		result, err := db.ExecContext(ctx, `
			INSERT INTO refs (aggregate_id, current)
			VALUES (?, ?)
			ON CONFLICT(aggregate_id) DO NOTHING
		`, aggregateID, newRef.String())
		if err != nil {
			return fmt.Errorf("swap ref: insert: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("swap ref: rows affected: %w", err)
		}
		if affected == 0 {
			return rcerrors.NewConflict("refs.swap", aggregateID, "ref already exists")
		}
		return nil
	}

	result, err := db.ExecContext(ctx, `
		UPDATE refs SET current = ?
		WHERE aggregate_id = ? AND current = ?
	`, newRef.String(), aggregateID, oldRef.String())
	if err != nil {
		return fmt.Errorf("swap ref: update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap ref: rows affected: %w", err)
	}
	if affected == 0 {
		return rcerrors.NewConflict("refs.swap", aggregateID, "stored ref does not match expected")
	}
	return nil
}

// Read implements store.RefStore.
func (s *Store) Read(ctx context.Context, aggregateID string) (hash.Hash, bool, error) {
	if err := ctx.Err(); err != nil {
		return hash.Zero(), false, err
	}
	if aggregateID == "" {
		return hash.Zero(), false, nil
	}
	return readRef(ctx, s.db, aggregateID)
}

func readRef(ctx context.Context, db dbtx, aggregateID string) (hash.Hash, bool, error) {
	var current string
	err := db.QueryRowContext(ctx, `
		SELECT current FROM refs WHERE aggregate_id = ?
	`, aggregateID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return hash.Zero(), false, nil
	}
	if err != nil {
		return hash.Zero(), false, fmt.Errorf("read ref: %w", err)
	}

	h, err := hash.Parse(current)
	if err != nil {
		return hash.Zero(), false, fmt.Errorf("read ref: stored value is not a valid hash: %w", err)
	}
	return h, true, nil
}
