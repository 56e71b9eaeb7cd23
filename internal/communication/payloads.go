package communication

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// PayloadRegistry maps message types to the Go type their payload decodes
// into. Transports share it.
type PayloadRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewPayloadRegistry() *PayloadRegistry {
	return &PayloadRegistry{types: make(map[string]reflect.Type)}
}

func (r *PayloadRegistry) Register(msgType string, payloadType reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[msgType] = payloadType
}

// Decode turns raw JSON into a value of the registered type. An empty
// payload decodes to the zero value.
func (r *PayloadRegistry) Decode(msgType string, raw []byte) (any, error) {
	r.mu.RLock()
	payloadType, ok := r.types[msgType]
	r.mu.RUnlock()

	if !ok {
		if len(raw) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownPayloadType, msgType)
	}

	payload := reflect.New(payloadType)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, payload.Interface()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPayloadUnmarshalFailed, err)
		}
	}
	return payload.Elem().Interface(), nil
}

// EncodePayload marshals a payload. A nil payload yields no bytes.
func EncodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadMarshalFailed, err)
	}
	return raw, nil
}
