package codec

import (
	"encoding/json"
	"fmt"

	"github.com/refchain/refchain/internal/event"
	"github.com/refchain/refchain/internal/hash"
)

// Envelope is the self-describing wire form of a whole event, used for
// import/export. Stores persist the fields as columns and only the body as
// opaque bytes; the envelope exists for tooling that moves events across
// store boundaries.
type Envelope struct {
	ID             string          `json:"id"`
	AggregateID    string          `json:"aggregate_id"`
	Timestamp      int64           `json:"timestamp"`
	CurrentVersion string          `json:"current_version"`
	Type           string          `json:"type"`
	Body           json.RawMessage `json:"body"`
}

// EncodeEvent wraps an event in its envelope form.
func (r *Registry) EncodeEvent(ev event.Event) ([]byte, error) {
	body, err := r.Encode(ev.Body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		ID:             ev.ID,
		AggregateID:    ev.AggregateID,
		Timestamp:      ev.Timestamp,
		CurrentVersion: ev.CurrentVersion.String(),
		Type:           ev.Type(),
		Body:           body,
	})
}

// DecodeEvent parses an envelope and materializes its payload through the
// registry.
func (r *Registry) DecodeEvent(data []byte) (event.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return event.Event{}, fmt.Errorf("codec: envelope: %w", err)
	}
	version, err := hash.Parse(env.CurrentVersion)
	if err != nil {
		return event.Event{}, fmt.Errorf("codec: envelope current_version: %w", err)
	}
	body, err := r.Decode(env.Type, env.Body)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		ID:             env.ID,
		AggregateID:    env.AggregateID,
		Timestamp:      env.Timestamp,
		CurrentVersion: version,
		Body:           body,
	}, nil
}
