// Package codec provides the serialization collaborator for refchain
// stores: a registry mapping event-type discriminators to payload decoders,
// plus a self-describing envelope for whole events.
//
// Decode failures are per-record conditions. Stores skip and log the
// offending record; a batch read never fails wholesale because one stored
// record is malformed.
package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/refchain/refchain/internal/event"
)

// DecodeFunc materializes a payload from its stored bytes.
type DecodeFunc func(data []byte) (event.Payload, error)

// FallbackFunc decodes payloads whose type has no registered decoder.
// Generic tooling uses this to pass unknown payloads through verbatim.
type FallbackFunc func(eventType string, data []byte) (event.Payload, error)

// Registry maps type discriminators to concrete payload shapes. The zero
// registry rejects every type; callers inject a populated one, the store
// never builds its own.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
	fallback FallbackFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// Register binds a decoder to an event type. Registering the same type
// twice replaces the earlier decoder.
func (r *Registry) Register(eventType string, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[eventType] = fn
}

// SetFallback installs a decoder for unregistered types.
func (r *Registry) SetFallback(fn FallbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Encode serializes a payload to its stored form.
func (r *Registry) Encode(p event.Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %q: %w", p.EventType(), err)
	}
	return data, nil
}

// Decode materializes a payload from stored bytes, dispatching on the type
// discriminator. Unknown types fail unless a fallback is installed.
func (r *Registry) Decode(eventType string, data []byte) (event.Payload, error) {
	r.mu.RLock()
	fn, ok := r.decoders[eventType]
	fallback := r.fallback
	r.mu.RUnlock()

	if !ok {
		if fallback == nil {
			return nil, fmt.Errorf("codec: no decoder registered for type %q", eventType)
		}
		return fallback(eventType, data)
	}
	p, err := fn(data)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %q: %w", eventType, err)
	}
	return p, nil
}

// RegisterJSON is a convenience for struct payloads: it registers a decoder
// that unmarshals into a fresh P.
func RegisterJSON[P event.Payload](r *Registry) {
	var zero P
	r.Register(zero.EventType(), func(data []byte) (event.Payload, error) {
		var p P
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	})
}
