// Package peerhandler runs the per-connection event loop: one goroutine per
// peer, multiplexing the kill signal, the keep-alive tick, the outbound
// mailbox, and inbound frames from the wire.
package peerhandler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/brady131313/rschat/internal/chatstate"
	"github.com/brady131313/rschat/internal/connection"
	"github.com/brady131313/rschat/internal/frame"
	"github.com/brady131313/rschat/internal/mailbox"
	"github.com/brady131313/rschat/internal/protocol"
	"github.com/brady131313/rschat/internal/ratelimit"
)

// Handler owns one connection's lifetime from accept to teardown.
type Handler struct {
	state     chatstate.ServerState
	conn      *connection.Connection
	peer      *chatstate.Peer
	keepAlive *mailbox.KeepAliveWatch
	limiter   *ratelimit.Limiter
}

// New returns a handler bound to conn. keepAlive is the process-wide
// watch the keep-alive emitter ticks; limiter may be nil to disable flood
// control.
func New(state chatstate.ServerState, conn *connection.Connection, peer *chatstate.Peer, keepAlive *mailbox.KeepAliveWatch, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		state:     state,
		conn:      conn,
		peer:      peer,
		keepAlive: keepAlive,
		limiter:   limiter,
	}
}

// Run multiplexes the four event sources until the connection ends, then
// removes the peer from state and closes the connection. It never returns
// an error: all failure paths are logged and treated as a normal exit.
func (h *Handler) Run() {
	defer h.conn.Close()
	defer h.state.RemovePeer(h.peer)
	defer slog.Info("peer disconnected", "addr", h.peer.Addr, "username", h.peer.Username)

	slog.Info("peer connected", "addr", h.peer.Addr)

	keepAliveTick := h.keepAlive.Chan()
	inbound := h.inboundFrames()

	for {
		select {
		case <-h.peer.Kill.Done():
			slog.Debug("peer killed", "addr", h.peer.Addr, "username", h.peer.Username)
			return

		case <-keepAliveTick:
			keepAliveTick = h.keepAlive.Chan()
			h.state.Broadcast(protocol.KeepAliveResponse{})

		case <-h.peer.Mailbox.Signal():
			if !h.drainMailbox() {
				return
			}

		case in, ok := <-inbound:
			if !ok {
				return
			}
			if !h.handleInbound(in) {
				return
			}
		}
	}
}

// drainMailbox writes every currently-queued outbound Response to the
// wire. It returns false if a write fails, signalling the caller to tear
// down the connection.
func (h *Handler) drainMailbox() bool {
	for {
		resp, ok := h.peer.Mailbox.Pop()
		if !ok {
			return true
		}
		if !h.writeResponse(resp) {
			return false
		}
	}
}

// inboundResult carries one parsed frame or the terminal error that ended
// the read side.
type inboundResult struct {
	cmd protocol.Command
	err error
}

// inboundFrames runs ReadFrame in its own goroutine so Run can select on
// it alongside the other three sources; the goroutine exits (closing the
// channel) once the connection's read side ends.
func (h *Handler) inboundFrames() <-chan inboundResult {
	out := make(chan inboundResult)
	go func() {
		defer close(out)
		for {
			f, err := h.conn.ReadFrame()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					slog.Debug("peer read error", "addr", h.peer.Addr, "username", h.peer.Username, "err", err)
				}
				return
			}

			cmd, err := protocol.UnmarshalCommand([]byte(f.Raw))
			select {
			case out <- inboundResult{cmd: cmd, err: err}:
			case <-h.peer.Kill.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// handleInbound applies one parsed command to state and enacts the
// resulting ResponseType. It returns false if the frame could not be
// decoded or a command other than Hello arrived before Hello succeeded (a
// protocol violation ends the session), or if a write failed.
func (h *Handler) handleInbound(res inboundResult) bool {
	if res.err != nil {
		slog.Info("peer sent invalid command, closing connection", "addr", h.peer.Addr, "username", h.peer.Username, "err", res.err)
		return false
	}
	if _, isHello := res.cmd.(protocol.Hello); !isHello && h.peer.Username == "" {
		slog.Info("peer sent a command before Hello, closing connection", "addr", h.peer.Addr)
		return false
	}

	if h.limiter != nil && !h.limiter.Allow() {
		slog.Debug("peer exceeded rate limit, frame dropped", "addr", h.peer.Addr, "username", h.peer.Username)
		return true
	}

	rt := h.state.Apply(res.cmd, h.peer)
	return h.enact(rt)
}

// enact performs the I/O a ResponseType calls for: state.Apply never
// touches a socket, and apart from Leave (which enqueues its roster update
// itself and returns None) it only decides what should happen (spec.md
// §4.5's enact step is the handler's job).
func (h *Handler) enact(rt chatstate.ResponseType) bool {
	switch r := rt.(type) {
	case chatstate.None:
		return true
	case chatstate.Sender:
		return h.writeResponse(r.Resp)
	case chatstate.SenderAndUser:
		if !h.state.SendToUser(r.User, r.Resp) {
			slog.Debug("peerhandler: direct message dropped, recipient not connected", "addr", h.peer.Addr, "to", r.User)
		}
		return h.writeResponse(r.Resp)
	case chatstate.Broadcast:
		h.state.Broadcast(r.Resp)
		return true
	case chatstate.BroadcastRoom:
		h.state.BroadcastRoom(r.Room, r.Resp)
		return true
	default:
		slog.Error("peerhandler: unknown ResponseType", "type", r)
		return true
	}
}

func (h *Handler) writeResponse(resp protocol.Response) bool {
	data, err := protocol.MarshalResponse(resp)
	if err != nil {
		slog.Error("peerhandler: failed to marshal response", "addr", h.peer.Addr, "err", err)
		return true
	}
	if err := h.conn.WriteFrame(frame.New(string(data))); err != nil {
		slog.Debug("peer write error", "addr", h.peer.Addr, "username", h.peer.Username, "err", err)
		return false
	}
	return true
}
