// Package chatstate holds the server's single shared mutable state: who is
// connected, who is logged in, and who belongs to which room. All mutation
// goes through ServerState.Apply or ServerState.RemovePeer, each of which
// holds one mutex for its whole duration so every observer sees a
// fully-applied view.
package chatstate

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/brady131313/rschat/internal/protocol"
)

// ResponseType describes who Apply's result must be delivered to. The
// handler (internal/peerhandler) is responsible for actually enacting it;
// ServerState itself only decides, it never writes to a socket.
type ResponseType interface {
	isResponseType()
}

// None means the command produced no outbound traffic (e.g. KeepAlive).
type None struct{}

// Sender means deliver resp only to the peer that issued the command.
type Sender struct {
	Resp protocol.Response
}

// SenderAndUser means enqueue resp into user's mailbox and also hand it
// back to the originator so its handler can echo it onto its own wire.
type SenderAndUser struct {
	User string
	Resp protocol.Response
}

// Broadcast means enqueue resp into every known peer's mailbox, including
// the sender's own.
type Broadcast struct {
	Resp protocol.Response
}

// BroadcastRoom means enqueue resp into the mailbox of every member of
// Room.
type BroadcastRoom struct {
	Room string
	Resp protocol.Response
}

func (None) isResponseType()          {}
func (Sender) isResponseType()        {}
func (SenderAndUser) isResponseType() {}
func (Broadcast) isResponseType()     {}
func (BroadcastRoom) isResponseType() {}

// ServerState is the mutex-guarded routing core shared by every peer
// handler. The zero value is not usable; construct with New.
type ServerState struct {
	inner *state
}

type state struct {
	mu sync.Mutex

	addrToUser map[string]string
	users      map[string]*Peer
	rooms      map[string]map[string]struct{}
}

// New returns a ServerState with no connected peers or rooms. Copies of
// the returned value share the same underlying storage — it is cheap to
// clone and pass by value, mirroring the source's Arc<Shared> design.
func New() ServerState {
	return ServerState{inner: &state{
		addrToUser: make(map[string]string),
		users:      make(map[string]*Peer),
		rooms:      make(map[string]map[string]struct{}),
	}}
}

// Apply runs one command to completion under the state mutex and returns
// what must be delivered, and to whom. It performs no socket I/O.
func (s ServerState) Apply(cmd protocol.Command, peer *Peer) ResponseType {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()

	switch c := cmd.(type) {
	case protocol.Hello:
		return s.inner.hello(c.Username, peer)
	case protocol.JoinOrCreate:
		return s.inner.joinOrCreate(c.Room, peer.Addr)
	case protocol.Leave:
		return s.inner.leaveRoom(c.Room, peer.Addr)
	case protocol.ListRooms:
		return s.inner.listRooms()
	case protocol.ListUsers:
		return s.inner.listUsers()
	case protocol.Send:
		return s.inner.send(c.Target, c.Message, peer.Addr)
	case protocol.KeepAlive:
		return s.inner.keepAlive(peer)
	default:
		slog.Error("chatstate: apply received unknown command type", "type", c)
		return None{}
	}
}

// Rooms returns a snapshot of the current room-name set, sorted. Empty
// rooms are included (spec §9: rooms are never garbage-collected).
func (s ServerState) Rooms() []string {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	rooms := make([]string, 0, len(s.inner.rooms))
	for r := range s.inner.rooms {
		rooms = append(rooms, r)
	}
	return sortStrings(rooms)
}

// Users returns a snapshot of the current connected-username set, sorted.
func (s ServerState) Users() []string {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	users := make([]string, 0, len(s.inner.users))
	for u := range s.inner.users {
		users = append(users, u)
	}
	return sortStrings(users)
}

// RoomMembers returns a snapshot of room's member set, sorted, and whether
// the room exists at all.
func (s ServerState) RoomMembers(room string) ([]string, bool) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	members, ok := s.inner.rooms[room]
	if !ok {
		return nil, false
	}
	return sortedKeys(members), true
}

// RemovePeer deletes peer's identity from every map and reports its
// departure to the remaining members of any room it belonged to. Called on
// clean disconnect or reaper eviction.
func (s ServerState) RemovePeer(peer *Peer) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	s.inner.removePeer(peer.Addr)
}

// Broadcast enqueues resp into every connected peer's mailbox.
func (s ServerState) Broadcast(resp protocol.Response) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	for _, p := range s.inner.users {
		p.Send(resp)
	}
}

// BroadcastRoom enqueues resp into the mailbox of every member of room. A
// room with no members, or that doesn't exist, is a silent no-op.
func (s ServerState) BroadcastRoom(room string, resp protocol.Response) {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	s.inner.broadcastRoomLocked(room, resp)
}

// SendToUser enqueues resp into username's mailbox. Reports false (and
// drops the message) if username isn't currently connected — spec.md's
// documented behavior for Send{Username(u)} to an unknown user.
func (s ServerState) SendToUser(username string, resp protocol.Response) bool {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	peer, ok := s.inner.users[username]
	if !ok {
		return false
	}
	peer.Send(resp)
	return true
}

// --- unexported, mutex-already-held operations ---

func (st *state) hello(username string, peer *Peer) ResponseType {
	if _, exists := st.users[username]; exists {
		return Sender{Resp: protocol.Err{Kind: protocol.UserAlreadyExists{Name: username}}}
	}

	peer.Username = username
	st.users[username] = peer
	st.addrToUser[peer.Addr] = username
	return None{}
}

func (st *state) joinOrCreate(room, addr string) ResponseType {
	user := st.userFor(addr)

	members, ok := st.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		st.rooms[room] = members
	}
	members[user] = struct{}{}

	return BroadcastRoom{Room: room, Resp: protocol.ListMembers{Room: room, Users: sortedKeys(members)}}
}

// leaveRoom removes user from room and delivers the updated roster to
// every member present at send time — including the leaver itself, who
// is no longer in the room by the time the roster would otherwise be
// enumerated. It delivers directly rather than returning BroadcastRoom
// because BroadcastRoom would enumerate recipients from the post-removal
// membership, which excludes the leaver.
func (st *state) leaveRoom(room, addr string) ResponseType {
	user := st.userFor(addr)

	members, ok := st.rooms[room]
	if !ok {
		return Sender{Resp: protocol.Err{Kind: protocol.RoomDoesNotExist{Name: room}}}
	}
	if _, inRoom := members[user]; !inRoom {
		return Sender{Resp: protocol.Err{Kind: protocol.UserNotInRoom{User: user, Room: room}}}
	}

	recipients := sortedKeys(members)
	delete(members, user)
	resp := protocol.ListMembers{Room: room, Users: sortedKeys(members)}
	st.sendToAllLocked(recipients, resp)
	return None{}
}

func (st *state) listRooms() ResponseType {
	rooms := make([]string, 0, len(st.rooms))
	for r := range st.rooms {
		rooms = append(rooms, r)
	}
	return Sender{Resp: protocol.ListRoomsResponse{Rooms: sortStrings(rooms)}}
}

func (st *state) listUsers() ResponseType {
	users := make([]string, 0, len(st.users))
	for u := range st.users {
		users = append(users, u)
	}
	return Sender{Resp: protocol.ListUsersResponse{Users: sortStrings(users)}}
}

func (st *state) send(target protocol.Target, message, addr string) ResponseType {
	sender := st.userFor(addr)

	switch t := target.(type) {
	case protocol.RoomTarget:
		return BroadcastRoom{Room: t.Name, Resp: protocol.TellRoom{Room: t.Name, Sender: sender, Message: message}}
	case protocol.UsernameTarget:
		return SenderAndUser{User: t.Name, Resp: protocol.TellUser{Username: t.Name, Sender: sender, Message: message}}
	default:
		slog.Error("chatstate: send received unknown target type", "type", t)
		return None{}
	}
}

func (st *state) keepAlive(peer *Peer) ResponseType {
	peer.Touch()
	return None{}
}

// removePeer deletes addr's identity from every map and broadcasts an
// updated roster to every room the user belonged to. Rooms are never
// deleted even if they become empty (spec §9).
func (st *state) removePeer(addr string) {
	user, ok := st.addrToUser[addr]
	if !ok {
		return
	}

	delete(st.addrToUser, addr)
	delete(st.users, user)

	for room, members := range st.rooms {
		if _, inRoom := members[user]; !inRoom {
			continue
		}
		delete(members, user)
		st.broadcastRoomLocked(room, protocol.ListMembers{Room: room, Users: sortedKeys(members)})
	}
}

func (st *state) broadcastRoomLocked(room string, resp protocol.Response) {
	for user := range st.rooms[room] {
		if peer, ok := st.users[user]; ok {
			peer.Send(resp)
		}
	}
}

// sendToAllLocked enqueues resp into every named user's mailbox, skipping
// anyone no longer connected.
func (st *state) sendToAllLocked(users []string, resp protocol.Response) {
	for _, user := range users {
		if peer, ok := st.users[user]; ok {
			peer.Send(resp)
		}
	}
}

// userFor resolves addr to a username. The handler closes a connection
// whose first command is not Hello, so through the handler every caller
// above runs after Hello has registered the peer. An unregistered addr is
// logged and resolves to the empty string.
func (st *state) userFor(addr string) string {
	user, ok := st.addrToUser[addr]
	if !ok {
		slog.Error("chatstate: command applied for unregistered address", "addr", addr)
		return ""
	}
	return user
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return sortStrings(out)
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
