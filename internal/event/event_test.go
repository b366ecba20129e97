package event

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcerrors "github.com/refchain/refchain/internal/errors"
	"github.com/refchain/refchain/internal/hash"
)

type notePayload struct {
	Text string `json:"text"`
}

func (notePayload) EventType() string { return "note.added" }

func sampleEvent() Event {
	return Event{
		ID:             "evt-001",
		AggregateID:    "acct-42",
		Timestamp:      1700000000000,
		CurrentVersion: hash.Zero(),
		Body:           notePayload{Text: "hello"},
	}
}

func TestEventHashDeterminism(t *testing.T) {
	h1, err := sampleEvent().Hash()
	require.NoError(t, err)
	h2, err := sampleEvent().Hash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "identical events must hash identically")
	assert.False(t, h1.IsZero())
}

func TestEventHashSensitivity(t *testing.T) {
	base, err := sampleEvent().Hash()
	require.NoError(t, err)

	mutations := map[string]func(*Event){
		"id":              func(e *Event) { e.ID = "evt-002" },
		"aggregate id":    func(e *Event) { e.AggregateID = "acct-43" },
		"timestamp":       func(e *Event) { e.Timestamp++ },
		"current version": func(e *Event) { e.CurrentVersion = hash.Sum(hash.EventDomain, []byte("x")) },
		"body":            func(e *Event) { e.Body = notePayload{Text: "bye"} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			ev := sampleEvent()
			mutate(&ev)
			h, err := ev.Hash()
			require.NoError(t, err)
			assert.NotEqual(t, base, h, "changing the %s must change the hash", name)
		})
	}
}

func TestEventHashChainsPredecessor(t *testing.T) {
	first := sampleEvent()
	h1, err := first.Hash()
	require.NoError(t, err)

	second := sampleEvent()
	second.ID = "evt-002"
	second.CurrentVersion = h1
	h2, err := second.Hash()
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestCanonicalEncodingGolden(t *testing.T) {
	ev := sampleEvent()
	body := []byte(`{"text":"hello"}`)

	canonical, err := MarshalCanonical(canonicalFields(ev, body))
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "event_canonical", canonical)
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleEvent().Validate())

	bad := []struct {
		name   string
		mutate func(*Event)
	}{
		{"empty id", func(e *Event) { e.ID = "" }},
		{"empty aggregate", func(e *Event) { e.AggregateID = "" }},
		{"negative timestamp", func(e *Event) { e.Timestamp = -1 }},
		{"nil body", func(e *Event) { e.Body = nil }},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			ev := sampleEvent()
			tc.mutate(&ev)
			err := ev.Validate()
			require.Error(t, err)
			assert.True(t, rcerrors.IsInvalidArgument(err))
		})
	}
}

func TestFilterMatch(t *testing.T) {
	start, end := int64(1500), int64(2500)

	tests := []struct {
		name   string
		filter Filter
		typ    string
		ts     int64
		want   bool
	}{
		{"no predicates", Filter{AggregateID: "a"}, "x", 100, true},
		{"type match", Filter{AggregateID: "a", Type: "x"}, "x", 100, true},
		{"type mismatch", Filter{AggregateID: "a", Type: "x"}, "y", 100, false},
		{"inside range", Filter{AggregateID: "a", Start: &start, End: &end}, "x", 2000, true},
		{"start inclusive", Filter{AggregateID: "a", Start: &start, End: &end}, "x", 1500, true},
		{"end inclusive", Filter{AggregateID: "a", Start: &start, End: &end}, "x", 2500, true},
		{"below range", Filter{AggregateID: "a", Start: &start, End: &end}, "x", 1499, false},
		{"above range", Filter{AggregateID: "a", Start: &start, End: &end}, "x", 2501, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Match(tc.typ, tc.ts))
		})
	}
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{AggregateID: "a"}.Validate())

	err := Filter{}.Validate()
	require.Error(t, err)
	assert.True(t, rcerrors.IsInvalidArgument(err))
}
