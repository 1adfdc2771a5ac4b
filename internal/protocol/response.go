package protocol

import (
	"encoding/json"
	"fmt"
)

// Response is a message sent from server to client.
type Response interface {
	responseTag() string
}

// ListMembers reports the current roster of Room.
type ListMembers struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// ListRoomsResponse reports the current set of room names.
type ListRoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// ListUsersResponse reports the current set of known usernames.
type ListUsersResponse struct {
	Users []string `json:"users"`
}

// TellRoom is a chat line broadcast to a room.
type TellRoom struct {
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// TellUser is a direct chat line between two users.
type TellUser struct {
	Username string `json:"username"`
	Sender   string `json:"sender"`
	Message  string `json:"message"`
}

// KeepAliveResponse is the server's liveness beacon.
type KeepAliveResponse struct{}

// Err reports a semantic error to the originating peer.
type Err struct {
	Kind ResponseError
}

func (ListMembers) responseTag() string       { return "ListMembers" }
func (ListRoomsResponse) responseTag() string { return "ListRooms" }
func (ListUsersResponse) responseTag() string { return "ListUsers" }
func (TellRoom) responseTag() string          { return "TellRoom" }
func (TellUser) responseTag() string          { return "TellUser" }
func (KeepAliveResponse) responseTag() string { return "KeepAlive" }
func (Err) responseTag() string               { return "Err" }

// ResponseError is the payload of an Err response.
type ResponseError interface {
	responseErrorTag() string
}

// UserAlreadyExists means a Hello used a username already claimed on
// another connection.
type UserAlreadyExists struct{ Name string }

// RoomDoesNotExist means a Leave (or other room-scoped command) named a
// room that has never been created.
type RoomDoesNotExist struct{ Name string }

// UserNotInRoom means a Leave was issued by a user who is not currently a
// member of the named room.
type UserNotInRoom struct {
	User string
	Room string
}

func (UserAlreadyExists) responseErrorTag() string { return "UserAlreadyExists" }
func (RoomDoesNotExist) responseErrorTag() string  { return "RoomDoesNotExist" }
func (UserNotInRoom) responseErrorTag() string     { return "UserNotInRoom" }

type userNotInRoomWire struct {
	User string `json:"user"`
	Room string `json:"room"`
}

// MarshalResponse encodes a Response in its tagged wire form.
func MarshalResponse(r Response) ([]byte, error) {
	switch v := r.(type) {
	case ListMembers:
		return marshalVariant("ListMembers", v)
	case ListRoomsResponse:
		return marshalVariant("ListRooms", v)
	case ListUsersResponse:
		return marshalVariant("ListUsers", v)
	case TellRoom:
		return marshalVariant("TellRoom", v)
	case TellUser:
		return marshalVariant("TellUser", v)
	case KeepAliveResponse:
		return marshalUnit("KeepAlive")
	case Err:
		errPayload, err := marshalResponseError(v.Kind)
		if err != nil {
			return nil, err
		}
		return marshalVariant("Err", json.RawMessage(errPayload))
	default:
		return nil, fmt.Errorf("protocol: unknown response type %T", r)
	}
}

func marshalResponseError(e ResponseError) ([]byte, error) {
	switch v := e.(type) {
	case UserAlreadyExists:
		return marshalNewtype("UserAlreadyExists", v.Name)
	case RoomDoesNotExist:
		return marshalNewtype("RoomDoesNotExist", v.Name)
	case UserNotInRoom:
		return marshalVariant("UserNotInRoom", userNotInRoomWire{User: v.User, Room: v.Room})
	default:
		return nil, fmt.Errorf("protocol: unknown response error type %T", e)
	}
}

// UnmarshalResponse decodes a Response from its tagged wire form. An
// unknown tag, or a known tag with malformed fields, yields
// ErrInvalidResponse.
func UnmarshalResponse(data []byte) (Response, error) {
	tag, raw, err := splitTagged(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	switch tag {
	case "ListMembers":
		var v ListMembers
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidResponse(tag, err)
		}
		return v, nil
	case "ListRooms":
		var v ListRoomsResponse
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidResponse(tag, err)
		}
		return v, nil
	case "ListUsers":
		var v ListUsersResponse
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidResponse(tag, err)
		}
		return v, nil
	case "TellRoom":
		var v TellRoom
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidResponse(tag, err)
		}
		return v, nil
	case "TellUser":
		var v TellUser
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, invalidResponse(tag, err)
		}
		return v, nil
	case "KeepAlive":
		return KeepAliveResponse{}, nil
	case "Err":
		kind, err := unmarshalResponseError(raw)
		if err != nil {
			return nil, invalidResponse(tag, err)
		}
		return Err{Kind: kind}, nil
	default:
		return nil, fmt.Errorf("%w: unknown response %q", ErrInvalidResponse, tag)
	}
}

func unmarshalResponseError(data []byte) (ResponseError, error) {
	tag, raw, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "UserAlreadyExists":
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, err
		}
		return UserAlreadyExists{Name: name}, nil
	case "RoomDoesNotExist":
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, err
		}
		return RoomDoesNotExist{Name: name}, nil
	case "UserNotInRoom":
		var v userNotInRoomWire
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return UserNotInRoom{User: v.User, Room: v.Room}, nil
	default:
		return nil, fmt.Errorf("unknown response error tag %q", tag)
	}
}

func invalidResponse(tag string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, tag, cause)
}
