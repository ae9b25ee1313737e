package tenant

import (
	"encoding/json"
	"fmt"
)

// Descriptor describes how to reach one tenant's backing database.
//
// Properties carries backend-specific settings (pool sizes, schema names)
// that the connection layer may interpret. The DSN may contain secret
// references; Resolver expands them before the descriptor is returned.
type Descriptor struct {
	// Name is the canonical tenant identifier.
	Name string `json:"name"`

	// DSN is the connection string for the tenant's database.
	DSN string `json:"dsn"`

	// Properties holds optional backend-specific settings.
	Properties map[string]string `json:"properties,omitempty"`
}

// Valid reports whether the descriptor carries the minimum required fields.
func (d Descriptor) Valid() bool {
	return d.Name != "" && d.DSN != ""
}

// encodeDescriptor serializes a descriptor for cache storage.
func encodeDescriptor(d Descriptor) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor %q: %w", d.Name, err)
	}
	return data, nil
}

// decodeDescriptor deserializes a cached descriptor. A payload that does
// not decode to a valid descriptor is reported as an error so callers can
// fall through to the backing store.
func decodeDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decode cached descriptor: %w", err)
	}
	if !d.Valid() {
		return Descriptor{}, fmt.Errorf("cached descriptor is incomplete")
	}
	return d, nil
}
