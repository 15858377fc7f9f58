package bridge

import (
	"encoding/json"
	"strings"
)

func (b *Bridge) relay(channel, payload string) {
	decoded := decodeStructured(payload)
	b.recorder.Relayed(decoded != nil)
	b.emitter.Emit(Event{
		Name:    EventMessage,
		Message: Message{Channel: channel, Raw: payload, Decoded: decoded},
	})
}

// decodeStructured decodes payloads that start like a JSON object or array.
// Anything else, or a failed decode, yields nil.
func decodeStructured(raw string) any {
	if !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}
	return decoded
}
