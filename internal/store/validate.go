package store

import (
	"fmt"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
)

// ValidateSwap checks swap arguments shared by every backend. A zero newRef
// is rejected (unless the call is a no-op) because the zero hash is the
// reserved "no ref" sentinel and a ref never moves backwards to it.
func ValidateSwap(aggregateID string, newRef, oldRef hash.Hash) error {
	if aggregateID == "" {
		return rcerrors.NewInvalidArgument("refs.swap", "aggregate id must not be empty")
	}
	if newRef.IsZero() && newRef != oldRef {
		return rcerrors.NewInvalidArgument("refs.swap", "new ref must not be the zero hash")
	}
	return nil
}

// ValidateCommit checks commit arguments shared by every backend.
func ValidateCommit(aggregateID string, ev event.Event) error {
	if aggregateID == "" {
		return rcerrors.NewInvalidArgument("store.commit", "aggregate id must not be empty")
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.AggregateID != aggregateID {
		return rcerrors.NewInvalidArgument("store.commit",
			fmt.Sprintf("event aggregate id %q does not match %q", ev.AggregateID, aggregateID))
	}
	return nil
}

// CheckExpected compares the stored ref state against the caller's expected
// version and returns the CONCURRENCY_CONFLICT the protocol demands on a
// mismatch. A missing ref only matches the zero expected version, so a
// nonexistent aggregate can never be "continued" from an arbitrary one.
func CheckExpected(op, aggregateID string, current hash.Hash, exists bool, expected hash.Hash) error {
	if exists {
		if current != expected {
			return rcerrors.NewConflict(op, aggregateID,
				fmt.Sprintf("expected version %s but ref is %s", expected, current))
		}
		return nil
	}
	if !expected.IsZero() {
		return rcerrors.NewConflict(op, aggregateID,
			fmt.Sprintf("expected version %s but aggregate has no ref", expected))
	}
	return nil
}
