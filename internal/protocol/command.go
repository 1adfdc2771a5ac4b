// Package protocol implements the Command/Response wire types exchanged
// between client and server. Both are tagged unions encoded the way the
// original Rust implementation's serde-derived enums are: unit variants as
// a bare JSON string ("KeepAlive"), variants carrying data as a single-key
// object whose key is the variant name ({"Hello":{"username":"alice"}}).
// Variant and field names travel on the wire, so the encoding is
// self-describing.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is a message sent from client to server.
type Command interface {
	commandTag() string
}

// Hello announces the connection's username. It must be the first command
// sent on a connection.
type Hello struct {
	Username string `json:"username"`
}

// KeepAlive is a liveness beacon refreshing the sender's peer state.
type KeepAlive struct{}

// ListRooms requests the set of known room names.
type ListRooms struct{}

// ListUsers requests the set of known usernames.
type ListUsers struct{}

// JoinOrCreate joins Room, creating it if it does not yet exist.
type JoinOrCreate struct {
	Room string `json:"room"`
}

// Leave removes the sender from Room.
type Leave struct {
	Room string `json:"room"`
}

// Send delivers Message to Target, either a room or a single user.
type Send struct {
	Target  Target `json:"target"`
	Message string `json:"message"`
}

func (Hello) commandTag() string        { return "Hello" }
func (KeepAlive) commandTag() string    { return "KeepAlive" }
func (ListRooms) commandTag() string    { return "ListRooms" }
func (ListUsers) commandTag() string    { return "ListUsers" }
func (JoinOrCreate) commandTag() string { return "JoinOrCreate" }
func (Leave) commandTag() string        { return "Leave" }
func (Send) commandTag() string         { return "Send" }

// Target names the recipient of a Send command: either a room or a single
// username.
type Target interface {
	targetTag() string
}

// RoomTarget addresses every member of a room.
type RoomTarget struct{ Name string }

// UsernameTarget addresses a single user.
type UsernameTarget struct{ Name string }

func (RoomTarget) targetTag() string     { return "Room" }
func (UsernameTarget) targetTag() string { return "Username" }

// MarshalJSON encodes t as {"Room": "name"} or {"Username": "name"} — a
// newtype-variant serde enum carries its payload directly, not wrapped in
// a nested object.
func (t RoomTarget) MarshalJSON() ([]byte, error) {
	return marshalNewtype("Room", t.Name)
}

func (t UsernameTarget) MarshalJSON() ([]byte, error) {
	return marshalNewtype("Username", t.Name)
}

// UnmarshalTarget decodes a Target from its tagged wire form.
func UnmarshalTarget(data []byte) (Target, error) {
	tag, raw, err := splitTagged(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	switch tag {
	case "Room":
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("protocol: Room target: %w", err)
		}
		return RoomTarget{Name: name}, nil
	case "Username":
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("protocol: Username target: %w", err)
		}
		return UsernameTarget{Name: name}, nil
	default:
		return nil, fmt.Errorf("%w: unknown target %q", ErrInvalidCommand, tag)
	}
}

// MarshalCommand encodes a Command in its tagged wire form.
func MarshalCommand(c Command) ([]byte, error) {
	switch v := c.(type) {
	case Hello:
		return marshalVariant("Hello", v)
	case KeepAlive:
		return marshalUnit("KeepAlive")
	case ListRooms:
		return marshalUnit("ListRooms")
	case ListUsers:
		return marshalUnit("ListUsers")
	case JoinOrCreate:
		return marshalVariant("JoinOrCreate", v)
	case Leave:
		return marshalVariant("Leave", v)
	case Send:
		return marshalVariant("Send", sendWire{Target: v.Target, Message: v.Message})
	default:
		return nil, fmt.Errorf("protocol: unknown command type %T", c)
	}
}

// sendWire mirrors Send but lets Target's custom MarshalJSON take effect
// through the json.Marshaler interface on the field.
type sendWire struct {
	Target  Target `json:"target"`
	Message string `json:"message"`
}

type sendWireIn struct {
	Target  json.RawMessage `json:"target"`
	Message string          `json:"message"`
}

// UnmarshalCommand decodes a Command from its tagged wire form. An unknown
// tag, or a known tag with malformed fields, yields ErrInvalidCommand.
func UnmarshalCommand(data []byte) (Command, error) {
	tag, raw, err := splitTagged(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	switch tag {
	case "Hello":
		var v Hello
		if err := json.Unmarshal(raw, &v); err != nil || v.Username == "" {
			return nil, invalidCommand(tag, err)
		}
		return v, nil
	case "KeepAlive":
		return KeepAlive{}, nil
	case "ListRooms":
		return ListRooms{}, nil
	case "ListUsers":
		return ListUsers{}, nil
	case "JoinOrCreate":
		var v JoinOrCreate
		if err := json.Unmarshal(raw, &v); err != nil || v.Room == "" {
			return nil, invalidCommand(tag, err)
		}
		return v, nil
	case "Leave":
		var v Leave
		if err := json.Unmarshal(raw, &v); err != nil || v.Room == "" {
			return nil, invalidCommand(tag, err)
		}
		return v, nil
	case "Send":
		var in sendWireIn
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, invalidCommand(tag, err)
		}
		target, err := UnmarshalTarget(in.Target)
		if err != nil {
			return nil, invalidCommand(tag, err)
		}
		return Send{Target: target, Message: in.Message}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, tag)
	}
}

func invalidCommand(tag string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCommand, tag, cause)
	}
	return fmt.Errorf("%w: %s: missing required field", ErrInvalidCommand, tag)
}
