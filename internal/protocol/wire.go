package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCommand is returned when a frame cannot be decoded as a Command.
var ErrInvalidCommand = errors.New("protocol: invalid command")

// ErrInvalidResponse is returned when a frame cannot be decoded as a Response.
var ErrInvalidResponse = errors.New("protocol: invalid response")

// marshalUnit encodes a data-less variant as a bare JSON string.
func marshalUnit(tag string) ([]byte, error) {
	return json.Marshal(tag)
}

// marshalVariant encodes a variant carrying data as {"tag": value}.
func marshalVariant(tag string, value any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: value})
}

// marshalNewtype encodes a single-value variant as {"tag": value}, the
// same shape as marshalVariant but named separately for newtype variants
// like Target's Room(String)/Username(String).
func marshalNewtype(tag string, value any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: value})
}

// errNotTagged is the untyped failure mode of splitTagged; callers wrap it
// as ErrInvalidCommand or ErrInvalidResponse depending on context.
var errNotTagged = errors.New("protocol: not a tagged value")

// splitTagged decodes the outer envelope of a tagged union: either a bare
// string (a unit variant's tag) or a single-key object (a variant's tag
// mapped to its payload). It returns the tag and the raw payload bytes
// (nil for a unit variant).
func splitTagged(data []byte) (tag string, payload json.RawMessage, err error) {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return asString, nil, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return "", nil, fmt.Errorf("%w: %s", errNotTagged, string(data))
	}
	if len(asObject) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant key, got %d", errNotTagged, len(asObject))
	}
	for k, v := range asObject {
		return k, v, nil
	}
	panic("unreachable")
}
