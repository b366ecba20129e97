package memory

import (
	"context"
	"sync"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/hash"
	"github.com/refchain/refchain/internal/store"
)

// refMap holds one independently locked cell per aggregate. The outer
// mutex guards only the structural mutation of inserting new cells;
// check-and-set runs under the cell's own lock, so contention on one
// aggregate is never observable to another.
type refMap struct {
	mu    sync.Mutex
	cells map[string]*refCell
}

type refCell struct {
	mu  sync.Mutex
	val hash.Hash
	set bool
}

func newRefMap() *refMap {
	return &refMap{cells: make(map[string]*refCell)}
}

func (m *refMap) cell(aggregateID string) *refCell {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cells[aggregateID]
	if !ok {
		c = &refCell{}
		m.cells[aggregateID] = c
	}
	return c
}

// Swap implements store.RefStore.
func (m *refMap) Swap(ctx context.Context, aggregateID string, newRef, oldRef hash.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateSwap(aggregateID, newRef, oldRef); err != nil {
		return err
	}
	if oldRef == newRef {
		return nil // idempotent no-change
	}

	c := m.cell(aggregateID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if oldRef.IsZero() {
		// Create: only valid when no ref exists yet.
		if c.set {
			return rcerrors.NewConflict("refs.swap", aggregateID, "ref already exists")
		}
		c.val = newRef
		c.set = true
		return nil
	}

	// Update: the stored ref must equal oldRef exactly.
	if !c.set || c.val != oldRef {
		return rcerrors.NewConflict("refs.swap", aggregateID, "stored ref does not match expected")
	}
	c.val = newRef
	return nil
}

// Read implements store.RefStore.
func (m *refMap) Read(ctx context.Context, aggregateID string) (hash.Hash, bool, error) {
	if err := ctx.Err(); err != nil {
		return hash.Zero(), false, err
	}
	if aggregateID == "" {
		return hash.Zero(), false, nil
	}

	m.mu.Lock()
	c, ok := m.cells[aggregateID]
	m.mu.Unlock()
	if !ok {
		return hash.Zero(), false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return hash.Zero(), false, nil
	}
	return c.val, true, nil
}
