package memory

import (
	"sort"
	"sync"

	"github.com/refchain/refchain/internal/hash"
)

// record is the stored form of a committed event: the envelope columns
// plus the payload bytes, stamped with the commit sequence that breaks
// timestamp ties.
type record struct {
	seq            int64
	id             string
	aggregateID    string
	timestamp      int64
	currentVersion hash.Hash
	eventType      string
	payload        []byte
}

// memLog is the append-only in-process event log. It is independent of ref
// state; the compensating remove exists solely for commits that lose the
// ref swap.
type memLog struct {
	mu   sync.Mutex
	seq  int64
	recs map[string][]record
	ids  map[string]struct{}
}

func newMemLog() *memLog {
	return &memLog{
		recs: make(map[string][]record),
		ids:  make(map[string]struct{}),
	}
}

// append stores a record, assigning and returning its commit sequence.
// Reports false when the event id is already taken.
func (l *memLog) append(rec record) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.ids[rec.id]; dup {
		return 0, false
	}
	l.seq++
	rec.seq = l.seq
	l.recs[rec.aggregateID] = append(l.recs[rec.aggregateID], rec)
	l.ids[rec.id] = struct{}{}
	return rec.seq, true
}

// remove undoes an append whose ref swap lost the race.
func (l *memLog) remove(aggregateID string, seq int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.recs[aggregateID]
	for i, rec := range recs {
		if rec.seq == seq {
			delete(l.ids, rec.id)
			l.recs[aggregateID] = append(recs[:i], recs[i+1:]...)
			return
		}
	}
}

// snapshot returns a copy of one aggregate's records sorted by
// (timestamp, seq).
func (l *memLog) snapshot(aggregateID string) []record {
	l.mu.Lock()
	out := append([]record(nil), l.recs[aggregateID]...)
	l.mu.Unlock()
	sortRecords(out)
	return out
}

// all returns a copy of every record across aggregates sorted by
// (timestamp, seq).
func (l *memLog) all() []record {
	l.mu.Lock()
	var out []record
	for _, recs := range l.recs {
		out = append(out, recs...)
	}
	l.mu.Unlock()
	sortRecords(out)
	return out
}

func sortRecords(recs []record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].timestamp != recs[j].timestamp {
			return recs[i].timestamp < recs[j].timestamp
		}
		return recs[i].seq < recs[j].seq
	})
}
