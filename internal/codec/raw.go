package codec

import (
	"encoding/json"
	"fmt"

	"github.com/refchain/refchain/internal/event"
)

// RawPayload carries payload bytes verbatim. It preserves the stored JSON
// exactly, so content hashes computed before and after a round-trip agree.
// The CLI and other generic tooling use it in place of concrete domain
// shapes.
type RawPayload struct {
	Type string
	Data json.RawMessage
}

// EventType implements event.Payload.
func (p RawPayload) EventType() string { return p.Type }

// MarshalJSON emits the wrapped bytes untouched.
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p.Data) == 0 {
		return []byte("{}"), nil
	}
	return p.Data, nil
}

// RawDecoder returns a DecodeFunc producing RawPayloads of the given type.
// The bytes are validated as JSON so corrupt rows still surface as
// per-record decode failures.
func RawDecoder(eventType string) DecodeFunc {
	return func(data []byte) (event.Payload, error) {
		if !json.Valid(data) {
			return nil, fmt.Errorf("codec: payload for type %q is not valid JSON", eventType)
		}
		return RawPayload{Type: eventType, Data: append(json.RawMessage(nil), data...)}, nil
	}
}

// RawFallback decodes any unregistered type as a RawPayload.
func RawFallback(eventType string, data []byte) (event.Payload, error) {
	return RawDecoder(eventType)(data)
}
